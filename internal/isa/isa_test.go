package isa_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halvard/machina/internal/isa"
)

func TestParseMnemonicCaseInsensitive(t *testing.T) {
	op, ok := isa.ParseMnemonic("syscall")
	require.True(t, ok)
	require.Equal(t, isa.OpSYSCALL, op)

	_, ok = isa.ParseMnemonic("NOPE")
	require.False(t, ok)
}

func TestParseSyscallKind(t *testing.T) {
	k, ok := isa.ParseSyscallKind("yield")
	require.True(t, ok)
	require.Equal(t, isa.SyscallYIELD, k)
}

func TestHole(t *testing.T) {
	require.True(t, isa.Instruction{}.Hole())
	require.False(t, isa.Instruction{Op: isa.OpHLT}.Hole())
	require.False(t, isa.Instruction{Source: "HLT"}.Hole())
}

func TestProgramAtBounds(t *testing.T) {
	p := isa.Program{{Op: isa.OpHLT}}

	in, ok := p.At(0)
	require.True(t, ok)
	require.Equal(t, isa.OpHLT, in.Op)

	_, ok = p.At(-1)
	require.False(t, ok)

	_, ok = p.At(1)
	require.False(t, ok)
}

func TestOperandCountVariesByOpcode(t *testing.T) {
	require.Equal(t, 2, isa.OperandCount(isa.OpADD))
	require.Equal(t, 1, isa.OperandCount(isa.OpPUSH))
	require.Equal(t, 0, isa.OperandCount(isa.OpHLT))
	require.Equal(t, -1, isa.OperandCount(isa.OpSYSCALL))
}
