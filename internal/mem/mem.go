// Package mem implements the machine's flat, bounds-checked memory.
package mem

// mem.go contains the memory controller. Memory is region-agnostic: the
// CPU's protection wrapper, not Memory, decides which addresses a given mode
// may touch.

import (
	"errors"
	"fmt"

	"github.com/halvard/machina/internal/word"
)

// MinSize is the smallest memory a machine may be configured with: just
// large enough to hold the register window (addresses 0-20).
const MinSize = 21

// DefaultSize is the memory size used when none is configured.
const DefaultSize = 11000

// Memory is a flat, ordered sequence of words, addressable by non-negative
// index. Every access is bounds checked.
type Memory struct {
	cell []word.Word
}

// New allocates memory with the given number of cells. size must be at least
// MinSize.
func New(size int) (*Memory, error) {
	if size < MinSize {
		return nil, fmt.Errorf("%w: size %d below minimum %d", ErrConfig, size, MinSize)
	}

	return &Memory{cell: make([]word.Word, size)}, nil
}

// Size returns the number of addressable cells.
func (m *Memory) Size() int {
	return len(m.cell)
}

// Read returns the word stored at addr.
func (m *Memory) Read(addr word.Word) (word.Word, error) {
	i := int(addr)

	if i < 0 || i >= len(m.cell) {
		return 0, &OutOfRangeError{Addr: addr, Size: len(m.cell)}
	}

	return m.cell[i], nil
}

// Write stores value at addr.
func (m *Memory) Write(addr, value word.Word) error {
	i := int(addr)

	if i < 0 || i >= len(m.cell) {
		return &OutOfRangeError{Addr: addr, Size: len(m.cell)}
	}

	m.cell[i] = value

	return nil
}

// View returns a copy of the memory cells, for debugging and dumping.
func (m *Memory) View() []word.Word {
	view := make([]word.Word, len(m.cell))
	copy(view, m.cell)

	return view
}

var (
	// ErrConfig is returned when Memory is misconfigured.
	ErrConfig = errors.New("mem: configuration error")

	// ErrOutOfRange is wrapped by OutOfRangeError.
	ErrOutOfRange = errors.New("mem: address out of range")
)

// OutOfRangeError reports an access outside the bounds of memory.
type OutOfRangeError struct {
	Addr word.Word
	Size int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("mem: address %s out of range [0,%d)", e.Addr, e.Size)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange //nolint:errorlint
}
