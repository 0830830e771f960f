package dump_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halvard/machina/internal/dump"
	"github.com/halvard/machina/internal/isa"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

type fakeRegs [6]word.Word

func (f fakeRegs) Registers() (pc, sp, event, icount, savedPC, arg1 word.Word) {
	return f[0], f[1], f[2], f[3], f[4], f[5]
}

func TestStep(t *testing.T) {
	var buf bytes.Buffer
	regs := fakeRegs{0, 999, trap.EventNone, 1, 0, 0}

	require.NoError(t, dump.Step(&buf, regs, isa.Instruction{Op: isa.OpHLT}, true, false))
	require.Contains(t, buf.String(), "HALTED=true")
}

func TestEventNamesKnownCode(t *testing.T) {
	var buf bytes.Buffer
	regs := fakeRegs{50, 998, trap.EventMemoryFault, 4, 10, 1000}

	require.NoError(t, dump.Event(&buf, regs))
	require.Contains(t, buf.String(), "MEMORY_FAULT")
}
