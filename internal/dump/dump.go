// Package dump renders machine state for the CLI's debug levels
// (spec.md §6): the register window, the current instruction, and, at the
// highest verbosity, the event that triggered a trap or mode change.
package dump

import (
	"fmt"
	"io"

	"github.com/halvard/machina/internal/isa"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

// Level is a debug verbosity, matching the CLI's -D flag.
type Level int

const (
	// LevelHalt dumps once, when the machine halts.
	LevelHalt Level = iota
	// LevelStep dumps after every instruction.
	LevelStep
	// LevelPause is LevelStep plus blocking for ENTER between steps.
	LevelPause
	// LevelEvent dumps, instead of every step, whenever EVENT or the
	// privilege mode changes (a trap fired or USER switched modes).
	LevelEvent
)

// Registers is the subset of machine state a dump needs; Machine implements
// this directly via its Registers method.
type Registers interface {
	Registers() (pc, sp, event, icount, savedPC, arg1 word.Word)
}

// Step writes a single-line dump of m's register window and the
// instruction about to execute (or that just executed, for the halt dump).
func Step(out io.Writer, m Registers, in isa.Instruction, halted, userMode bool) error {
	pc, sp, event, icount, savedPC, arg1 := m.Registers()

	_, err := fmt.Fprintf(out,
		"PC=%s SP=%s EVENT=%s ICOUNT=%s SAVED_PC=%s ARG1=%s HALTED=%t USER=%t | %s\n",
		pc, sp, event, icount, savedPC, arg1, halted, userMode, in,
	)

	return err
}

// Event writes a dump line specifically for an EVENT transition, labeling
// it with the fault or syscall code's meaning.
func Event(out io.Writer, m Registers) error {
	pc, sp, event, icount, savedPC, arg1 := m.Registers()

	_, err := fmt.Fprintf(out,
		"EVENT %s: PC=%s SP=%s ICOUNT=%s SAVED_PC=%s ARG1=%s\n",
		eventName(event), pc, sp, icount, savedPC, arg1,
	)

	return err
}

func eventName(event word.Word) string {
	switch event {
	case trap.EventNone:
		return "NONE"
	case trap.EventSyscallPRN:
		return "SYSCALL_PRN"
	case trap.EventSyscallHLT:
		return "SYSCALL_HLT"
	case trap.EventSyscallYIELD:
		return "SYSCALL_YIELD"
	case trap.EventMemoryFault:
		return "MEMORY_FAULT"
	case trap.EventUnknownInstruction:
		return "UNKNOWN_INSTRUCTION"
	case trap.EventArithmeticFault:
		return "ARITHMETIC_FAULT"
	default:
		return fmt.Sprintf("UNKNOWN(%s)", event)
	}
}
