// Package trap defines the machine's memory-mapped register window, memory
// regions, event codes and fault types: the shared vocabulary of the
// CPU-supervisor trap protocol described in spec.md §4.5 and §6.
package trap

import (
	"errors"
	"fmt"

	"github.com/halvard/machina/internal/word"
)

// Register-window addresses. These cells are always legally accessible,
// regardless of privilege mode (spec.md §4.3): the protection wrapper only
// restricts 21..999.
const (
	PC       = word.Word(0)
	SP       = word.Word(1)
	EVENT    = word.Word(2)
	ICOUNT   = word.Word(3)
	SAVED_PC = word.Word(4) //nolint:stylecheck // matches spec.md's register name
	ARG1     = word.Word(5)

	RegisterWindowEnd = word.Word(20) // last register-window address
	SupervisorStart   = word.Word(21) // first supervisor-private address
	SupervisorEnd     = word.Word(999)
	UserSpaceStart    = word.Word(1000)
)

// Event codes written to the EVENT register on a trap.
const (
	EventNone               = word.Word(0)
	EventSyscallPRN         = word.Word(1)
	EventSyscallHLT         = word.Word(2)
	EventSyscallYIELD       = word.Word(3)
	EventMemoryFault        = word.Word(4)
	EventUnknownInstruction = word.Word(5)
	EventArithmeticFault    = word.Word(6)
)

// Config holds the handler PC constants: fixed, build-time addresses the
// supervisor image must place its handlers at (spec.md §6).
type Config struct {
	SyscallHandler            word.Word
	MemoryFaultHandler        word.Word
	UnknownInstructionHandler word.Word
	ArithmeticFaultHandler    word.Word
}

// DefaultConfig returns the handler PCs used when a machine is not
// configured otherwise. See DESIGN.md for the rationale behind these
// particular values.
func DefaultConfig() Config {
	return Config{
		SyscallHandler:            50,
		MemoryFaultHandler:        60,
		UnknownInstructionHandler: 70,
		ArithmeticFaultHandler:    80,
	}
}

// ErrFault is wrapped by every fault type in this package (MemoryFault,
// AddressingFault, UnknownInstructionFault, ArithmeticFault), so callers can
// test broadly with errors.Is(err, trap.ErrFault). Syscall and CycleCeiling
// are not faults and do not wrap it.
var ErrFault = errors.New("trap: fault")

// MemoryFault is raised when user-mode code accesses a forbidden address, or
// when any out-of-range memory access occurs while running as user. Stack
// overflow is always classified as MemoryFault, per spec.md §7; stack
// underflow is an out-of-range access like any other, so it is a MemoryFault
// in user mode and an AddressingFault in kernel mode.
type MemoryFault struct {
	Addr word.Word
}

func (f *MemoryFault) Error() string {
	return fmt.Sprintf("trap: memory fault at %s", f.Addr)
}

func (f *MemoryFault) Is(target error) bool { return target == ErrFault } //nolint:errorlint

// NewStackFault builds the MemoryFault raised for stack overflow: a PUSH or
// CALL that would drive SP below 0. Addr is that would-be SP.
func NewStackFault(addr word.Word) *MemoryFault {
	return &MemoryFault{Addr: addr}
}

// AddressingFault is raised when kernel-mode code accesses an out-of-range
// address. It is always fatal (spec.md §4.3, §7).
type AddressingFault struct {
	Addr word.Word
}

func (f *AddressingFault) Error() string {
	return fmt.Sprintf("trap: addressing fault at %s", f.Addr)
}

func (f *AddressingFault) Is(target error) bool { return target == ErrFault } //nolint:errorlint

// UnknownInstructionFault is raised when the program counter does not index
// a valid instruction table slot.
type UnknownInstructionFault struct {
	PC word.Word
}

func (f *UnknownInstructionFault) Error() string {
	return fmt.Sprintf("trap: unknown instruction at pc %s", f.PC)
}

func (f *UnknownInstructionFault) Is(target error) bool { return target == ErrFault } //nolint:errorlint

// ArithmeticFault is raised when an arithmetic instruction overflows.
type ArithmeticFault struct {
	Op string
}

func (f *ArithmeticFault) Error() string {
	return fmt.Sprintf("trap: arithmetic fault in %s", f.Op)
}

func (f *ArithmeticFault) Is(target error) bool { return target == ErrFault } //nolint:errorlint

// Syscall signals that a SYSCALL instruction executed and should be
// delivered as a trap once the instruction cycle finishes (the PRN print, if
// any, has already happened by the time Syscall is returned).
type Syscall struct {
	Kind word.Word // one of EventSyscallPRN, EventSyscallHLT, EventSyscallYIELD
	Arg1 word.Word
}

func (s *Syscall) Error() string {
	return fmt.Sprintf("trap: syscall event %s arg1 %s", s.Kind, s.Arg1)
}

// CycleCeiling is returned by Run, not Step, when the cycle ceiling is
// reached. It is non-fatal: the caller decides what to do next.
type CycleCeiling struct {
	Count word.Word
}

func (c *CycleCeiling) Error() string {
	return fmt.Sprintf("trap: cycle ceiling reached at %s instructions", c.Count)
}
