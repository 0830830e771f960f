// Package isa defines the machine's instruction set: opcodes, the decoded
// instruction shape, and the table of instructions loaded from an image.
package isa

//go:generate go run golang.org/x/tools/cmd/stringer -type Opcode -output opcode_string.go

import (
	"strings"

	"github.com/halvard/machina/internal/word"
)

// Opcode identifies a machine operation. The zero value, OpNone, is not a
// real opcode: it marks a hole in a sparse instruction table (see Program).
type Opcode uint8

// Opcodes, exactly the mnemonics of spec.md §4.2.
const (
	OpNone Opcode = iota
	OpSET
	OpCPY
	OpCPYI
	OpCPYI2
	OpADD
	OpADDI
	OpSUBI
	OpJIF
	OpPUSH
	OpPOP
	OpCALL
	OpRET
	OpHLT
	OpUSER
	OpLOADI
	OpSTOREI
	OpSYSCALL
)

// SyscallKind distinguishes the three SYSCALL subtypes.
type SyscallKind uint8

// Syscall subtypes.
const (
	SyscallNone SyscallKind = iota
	SyscallPRN
	SyscallHLT
	SyscallYIELD
)

func (k SyscallKind) String() string {
	switch k {
	case SyscallPRN:
		return "PRN"
	case SyscallHLT:
		return "HLT"
	case SyscallYIELD:
		return "YIELD"
	default:
		return "NONE"
	}
}

// Instruction is a single decoded instruction: an opcode, up to two operand
// words, a syscall subtype (when Op is OpSYSCALL), the number of operands
// actually present, and the original source text, for dumps and diagnostics.
//
// The zero value is a "hole": a table slot never populated by the loader,
// treated as an implicit HLT (spec.md §4.4 step 3).
type Instruction struct {
	Op       Opcode
	Arg1     word.Word
	Arg2     word.Word
	Syscall  SyscallKind
	Operands int
	Source   string
}

// Hole reports whether in is an unpopulated table slot.
func (in Instruction) Hole() bool {
	return in.Op == OpNone && in.Source == ""
}

// mnemonics maps instruction source text (upper-cased) to opcodes.
var mnemonics = map[string]Opcode{
	"SET":     OpSET,
	"CPY":     OpCPY,
	"CPYI":    OpCPYI,
	"CPYI2":   OpCPYI2,
	"ADD":     OpADD,
	"ADDI":    OpADDI,
	"SUBI":    OpSUBI,
	"JIF":     OpJIF,
	"PUSH":    OpPUSH,
	"POP":     OpPOP,
	"CALL":    OpCALL,
	"RET":     OpRET,
	"HLT":     OpHLT,
	"USER":    OpUSER,
	"LOADI":   OpLOADI,
	"STOREI":  OpSTOREI,
	"SYSCALL": OpSYSCALL,
}

var syscallKinds = map[string]SyscallKind{
	"PRN":   SyscallPRN,
	"HLT":   SyscallHLT,
	"YIELD": SyscallYIELD,
}

// ParseMnemonic looks up the opcode for a mnemonic, case-insensitively.
func ParseMnemonic(s string) (Opcode, bool) {
	op, ok := mnemonics[strings.ToUpper(s)]
	return op, ok
}

// ParseSyscallKind looks up a SYSCALL subtype, case-insensitively.
func ParseSyscallKind(s string) (SyscallKind, bool) {
	k, ok := syscallKinds[strings.ToUpper(s)]
	return k, ok
}

// OperandCount returns the number of operands an opcode takes. SYSCALL's
// count depends on its subtype (PRN takes one, HLT and YIELD take none), so
// callers decoding SYSCALL should use Instruction.Operands directly instead.
func OperandCount(op Opcode) int {
	switch op {
	case OpCPY, OpCPYI, OpCPYI2, OpADD, OpADDI, OpSUBI, OpJIF, OpLOADI, OpSTOREI:
		return 2
	case OpSET:
		return 2
	case OpPUSH, OpPOP, OpCALL, OpUSER:
		return 1
	case OpRET, OpHLT:
		return 0
	case OpSYSCALL:
		return -1 // variable; see SyscallKind
	default:
		return 0
	}
}

func (op Opcode) String() string {
	for mnemonic, candidate := range mnemonics {
		if candidate == op {
			return mnemonic
		}
	}

	return "NONE"
}

func (in Instruction) String() string {
	if in.Hole() {
		return "<hole>"
	}

	if in.Source != "" {
		return in.Source
	}

	return in.Op.String()
}

// Program is the machine's instruction table: an immutable sequence indexed
// by the program counter.
type Program []Instruction

// At returns the instruction at pc, or false if pc is outside the table.
func (p Program) At(pc word.Word) (Instruction, bool) {
	i := int(pc)
	if i < 0 || i >= len(p) {
		return Instruction{}, false
	}

	return p[i], true
}
