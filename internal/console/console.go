// Package console adapts the machine's print callback and debug pauser to
// the host terminal, grounded on the teacher's terminal handling in
// internal/tty/tty.go but narrowed to this simulator's needs: there is no
// keyboard device and no raw mode, only line-oriented PRN output and an
// optional single-step pause.
package console

import (
	"bufio"
	"fmt"
	"io"

	"golang.org/x/term"

	"github.com/halvard/machina/internal/word"
)

// Sink writes the value of every SYSCALL PRN to out, one per line.
type Sink struct {
	out io.Writer
}

// NewSink returns a Sink that writes to out.
func NewSink(out io.Writer) *Sink {
	return &Sink{out: out}
}

// Print implements machine.Sink.
func (s *Sink) Print(v word.Word) error {
	_, err := fmt.Fprintln(s.out, v)
	return err
}

// Pauser blocks execution between steps until the user presses enter, for
// debug level 2 (single-step). It only pauses when in is attached
// to an interactive terminal; scripted or piped input runs unattended.
type Pauser struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
	fd     int
	force  bool
}

// NewPauser returns a Pauser reading prompts from in and writing them to
// out. fd is the file descriptor backing in, used to detect whether it is a
// terminal; pass -1 if unknown.
func NewPauser(in io.Reader, out io.Writer, fd int) *Pauser {
	return &Pauser{in: in, out: out, reader: bufio.NewReader(in), fd: fd}
}

// Force overrides the terminal check, so tests can exercise pausing without
// a real tty attached.
func (p *Pauser) Force(force bool) *Pauser {
	p.force = force
	return p
}

// interactive reports whether the pauser should actually block: either fd is
// a terminal, or the caller forced pausing regardless (tests do this).
func (p *Pauser) interactive() bool {
	return p.force || (p.fd >= 0 && term.IsTerminal(p.fd))
}

// Pause prints a single-step prompt describing state and waits for enter,
// unless the input is not a terminal.
func (p *Pauser) Pause(state fmt.Stringer) error {
	if !p.interactive() {
		return nil
	}

	if _, err := fmt.Fprintf(p.out, "-- step -- %s (press ENTER to continue) ", state); err != nil {
		return err
	}

	_, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}

	return nil
}
