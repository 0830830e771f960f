package machine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halvard/machina/internal/isa"
	"github.com/halvard/machina/internal/machine"
	"github.com/halvard/machina/internal/mem"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

func newMachine(t *testing.T, program isa.Program) *machine.Machine {
	t.Helper()

	m, err := mem.New(mem.DefaultSize)
	require.NoError(t, err)

	return machine.New(m, program)
}

// Scenario 1: minimal halt.
func TestMinimalHalt(t *testing.T) {
	m := newMachine(t, isa.Program{{Op: isa.OpHLT}})

	require.NoError(t, m.Run(context.Background()))

	pc, _, _, icount, _, _ := m.Registers()
	require.True(t, m.Halted)
	require.EqualValues(t, 0, pc)
	require.EqualValues(t, 1, icount)
}

// Scenario 2: print constant.
type recordingSink struct{ values []word.Word }

func (s *recordingSink) Print(v word.Word) error {
	s.values = append(s.values, v)
	return nil
}

func TestPrintConstant(t *testing.T) {
	memory, err := mem.New(mem.DefaultSize)
	require.NoError(t, err)
	// 1100 lies in user space, so the user-mode PRN may read it.
	require.NoError(t, memory.Write(1100, 42))

	program := isa.Program{
		{Op: isa.OpSYSCALL, Syscall: isa.SyscallPRN, Arg1: 1100},
		{Op: isa.OpHLT},
	}
	// a trivial supervisor: the syscall handler at PC 50 just halts.
	program = append(program, make(isa.Program, trap.DefaultConfig().SyscallHandler-word.Word(len(program)))...)
	program = append(program, isa.Instruction{Op: isa.OpHLT})

	sink := &recordingSink{}
	m := machine.New(memory, program, machine.WithPrintSink(sink))
	m.UserMode = true

	require.NoError(t, m.Run(context.Background()))
	require.Equal(t, []word.Word{42}, sink.values)
	require.True(t, m.Halted)
}

// Scenario 3: protection trap.
func TestProtectionTrap(t *testing.T) {
	program := isa.Program{
		{Op: isa.OpUSER, Arg1: 10},
		{Op: isa.OpHLT},
	}
	// cell 10 holds the user thread's entry PC, 20.
	m := newMachine(t, program)
	require.NoError(t, m.Write(10, 20))

	// user thread at PC 20: SET 7 50 (50 is inside supervisor-private range).
	for len(program) <= 20 {
		program = append(program, isa.Instruction{})
	}
	program[20] = isa.Instruction{Op: isa.OpSET, Arg1: 7, Arg2: 50}
	m = machine.New(m.Mem, program)

	require.NoError(t, m.Step()) // USER 10: enters user mode at PC 20
	require.True(t, m.UserMode)

	require.NoError(t, m.Step()) // SET 7 50 traps

	pc, _, event, _, savedPC, arg1 := m.Registers()
	require.False(t, m.UserMode)
	require.EqualValues(t, trap.EventMemoryFault, event)
	require.EqualValues(t, 50, arg1)
	require.EqualValues(t, 20, savedPC)
	require.Equal(t, trap.DefaultConfig().MemoryFaultHandler, pc)
}

// Scenario 4: arithmetic and branch loop. Instruction 2 uses SET to write
// PC directly (PC is memory cell 0), closing the loop without a dedicated
// jump opcode.
func TestArithmeticBranchLoop(t *testing.T) {
	memory, err := mem.New(mem.DefaultSize)
	require.NoError(t, err)
	require.NoError(t, memory.Write(10, 3))

	program := isa.Program{
		{Op: isa.OpADD, Arg1: 10, Arg2: -1},
		{Op: isa.OpJIF, Arg1: 10, Arg2: 4},
		{Op: isa.OpSET, Arg1: 0, Arg2: trap.PC},
		{},
		{Op: isa.OpHLT},
	}

	m := machine.New(memory, program)
	require.NoError(t, m.Run(context.Background()))

	pc, _, _, icount, _, _ := m.Registers()
	require.EqualValues(t, 4, pc)
	require.True(t, m.Halted)
	// 3 iterations of ADD+JIF (6 steps) plus 2 backward jumps (SET) plus
	// the final HLT.
	require.EqualValues(t, 9, icount)

	v, err := m.Read(10)
	require.NoError(t, err)
	require.EqualValues(t, 0, v)
}

// Scenario 5: call/ret.
func TestCallRet(t *testing.T) {
	program := isa.Program{
		{Op: isa.OpCALL, Arg1: 5},
		{Op: isa.OpHLT},
		{}, {}, {},
		{Op: isa.OpSET, Arg1: 99, Arg2: 200},
		{Op: isa.OpRET},
	}

	m := newMachine(t, program)
	require.NoError(t, m.Write(trap.SP, 2000))
	_, spBefore, _, _, _, _ := m.Registers()

	require.NoError(t, m.Step()) // CALL 5
	require.NoError(t, m.Step()) // SET 99 200
	require.NoError(t, m.Step()) // RET

	pc, spAfter, _, _, _, _ := m.Registers()
	require.EqualValues(t, 1, pc)
	require.Equal(t, spBefore, spAfter)

	v, err := m.Read(200)
	require.NoError(t, err)
	require.EqualValues(t, 99, v)
}

// Scenario 6: indirect store.
func TestIndirectStore(t *testing.T) {
	memory, err := mem.New(mem.DefaultSize)
	require.NoError(t, err)
	require.NoError(t, memory.Write(150, 200))
	require.NoError(t, memory.Write(151, 77))

	program := isa.Program{
		{Op: isa.OpSTOREI, Arg1: 151, Arg2: 150},
		{Op: isa.OpHLT},
	}

	m := machine.New(memory, program)
	require.NoError(t, m.Run(context.Background()))

	v, err := m.Read(200)
	require.NoError(t, err)
	require.EqualValues(t, 77, v)
}

// PUSH/POP round-trip a value through the stack (spec.md §8).
func TestPushPopRoundTrip(t *testing.T) {
	program := isa.Program{
		{Op: isa.OpSET, Arg1: 42, Arg2: 100}, // mem[100] = 42
		{Op: isa.OpPUSH, Arg1: 100},          // push mem[100]
		{Op: isa.OpSET, Arg1: 0, Arg2: 100},  // clear mem[100]
		{Op: isa.OpPOP, Arg1: 100},           // pop back into mem[100]
		{Op: isa.OpHLT},
	}

	m := newMachine(t, program)
	require.NoError(t, m.Write(trap.SP, 2000))

	require.NoError(t, m.Step()) // SET 42 100
	require.NoError(t, m.Step()) // PUSH 100

	_, spAfterPush, _, _, _, _ := m.Registers()
	require.EqualValues(t, 1999, spAfterPush)

	v, err := m.Read(1999)
	require.NoError(t, err)
	require.EqualValues(t, 42, v)

	require.NoError(t, m.Step()) // SET 0 100

	v, err = m.Read(100)
	require.NoError(t, err)
	require.EqualValues(t, 0, v)

	require.NoError(t, m.Step()) // POP 100

	_, spAfterPop, _, _, _, _ := m.Registers()
	require.EqualValues(t, 2000, spAfterPop)

	v, err = m.Read(100)
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
}

// Pushing with SP already at 0 must never decrement SP past the bottom of
// the stack: spec.md §8's "SP never negative without a stack fault".
func TestStackOverflowTrapsInUserMode(t *testing.T) {
	program := isa.Program{{Op: isa.OpPUSH, Arg1: 1000}}

	m := newMachine(t, program)
	m.UserMode = true
	// SP defaults to 0 (zero-initialized memory): the next PUSH overflows.

	require.NoError(t, m.Step())

	pc, sp, event, _, savedPC, _ := m.Registers()
	require.False(t, m.UserMode)
	require.EqualValues(t, trap.EventMemoryFault, event)
	require.EqualValues(t, 0, savedPC)
	require.Equal(t, trap.DefaultConfig().MemoryFaultHandler, pc)
	require.EqualValues(t, 0, sp) // SP is left untouched by the faulting push
}

func TestStackOverflowFatalInKernelMode(t *testing.T) {
	program := isa.Program{{Op: isa.OpPUSH, Arg1: 1000}}

	m := newMachine(t, program)
	// SP defaults to 0; kernel mode is the zero value already.

	err := m.Step()
	require.Error(t, err)
	require.True(t, m.Halted)
}

// RET with SP left pointing outside memory (e.g. a corrupted or never
// CALLed stack) must fault rather than read garbage into PC.
func TestStackUnderflowTrapsInUserMode(t *testing.T) {
	program := isa.Program{{Op: isa.OpRET}}

	m := newMachine(t, program)
	m.UserMode = true
	require.NoError(t, m.Write(trap.SP, -1))

	require.NoError(t, m.Step())

	pc, _, event, _, savedPC, _ := m.Registers()
	require.False(t, m.UserMode)
	require.EqualValues(t, trap.EventMemoryFault, event)
	require.EqualValues(t, 0, savedPC)
	require.Equal(t, trap.DefaultConfig().MemoryFaultHandler, pc)
}

func TestStackUnderflowFatalInKernelMode(t *testing.T) {
	program := isa.Program{{Op: isa.OpPOP, Arg1: 100}}

	m := newMachine(t, program)
	require.NoError(t, m.Write(trap.SP, -1))

	err := m.Step()
	require.Error(t, err)
	require.True(t, m.Halted)
}

func TestHoleIsImplicitHalt(t *testing.T) {
	m := newMachine(t, isa.Program{{}, {}, {}})

	require.NoError(t, m.Step())
	require.True(t, m.Halted)
}

func TestCycleCeiling(t *testing.T) {
	program := isa.Program{{Op: isa.OpJIF, Arg1: 100, Arg2: 0}}
	m := newMachine(t, program)
	m.CycleLimit = 3

	err := m.Run(context.Background())
	require.Error(t, err)

	var ceiling *trap.CycleCeiling
	require.ErrorAs(t, err, &ceiling)
}

func TestArithmeticOverflowFaultsInUserMode(t *testing.T) {
	memory, err := mem.New(mem.DefaultSize)
	require.NoError(t, err)
	require.NoError(t, memory.Write(10, word.Word(1)<<62))

	program := isa.Program{
		{Op: isa.OpADD, Arg1: 10, Arg2: word.Word(1) << 62},
	}

	m := machine.New(memory, program)
	m.UserMode = true

	require.NoError(t, m.Step())

	_, _, event, _, _, _ := m.Registers()
	require.EqualValues(t, trap.EventArithmeticFault, event)
	require.False(t, m.UserMode)
}

func TestArithmeticOverflowFatalInKernelMode(t *testing.T) {
	memory, err := mem.New(mem.DefaultSize)
	require.NoError(t, err)
	require.NoError(t, memory.Write(10, word.Word(1)<<62))

	program := isa.Program{
		{Op: isa.OpADD, Arg1: 10, Arg2: word.Word(1) << 62},
	}

	m := machine.New(memory, program)

	err = m.Step()
	require.Error(t, err)
	require.True(t, m.Halted)
}
