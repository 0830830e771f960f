package machine

// machine.go defines the CPU state and its construction.

import (
	"fmt"

	"github.com/halvard/machina/internal/isa"
	"github.com/halvard/machina/internal/log"
	"github.com/halvard/machina/internal/mem"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

// DefaultCycleLimit bounds Run's loop to prevent runaway images (spec.md §5).
const DefaultCycleLimit = 10_000_000

// Sink receives the value printed by a SYSCALL PRN instruction.
type Sink interface {
	Print(v word.Word) error
}

// discardSink is used when no print sink is configured.
type discardSink struct{}

func (discardSink) Print(word.Word) error { return nil }

// Machine is the CPU: a memory, an immutable instruction table, and the two
// CPU-internal flags that are not memory-mapped.
type Machine struct {
	Mem     *mem.Memory
	Program isa.Program

	Halted   bool
	UserMode bool

	Config     trap.Config
	CycleLimit word.Word

	Print Sink

	log       *log.Logger
	pcWritten bool // set by Write when an instruction touches PC directly; see Step.
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Machine) { m.log = logger }
}

// WithConfig sets the trap handler configuration.
func WithConfig(cfg trap.Config) Option {
	return func(m *Machine) { m.Config = cfg }
}

// WithCycleLimit overrides the cycle ceiling enforced by Run.
func WithCycleLimit(n word.Word) Option {
	return func(m *Machine) { m.CycleLimit = n }
}

// WithPrintSink configures where SYSCALL PRN output is sent.
func WithPrintSink(sink Sink) Option {
	return func(m *Machine) { m.Print = sink }
}

// New creates a machine over the given memory and instruction table. Memory
// is expected to already hold the loaded data section; the instruction
// table is immutable for the machine's lifetime.
func New(memory *mem.Memory, program isa.Program, opts ...Option) *Machine {
	m := &Machine{
		Mem:        memory,
		Program:    program,
		Config:     trap.DefaultConfig(),
		CycleLimit: DefaultCycleLimit,
		Print:      discardSink{},
		log:        log.DefaultLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Machine) String() string {
	pc, _ := m.Mem.Read(trap.PC)
	sp, _ := m.Mem.Read(trap.SP)
	event, _ := m.Mem.Read(trap.EVENT)
	icount, _ := m.Mem.Read(trap.ICOUNT)

	return fmt.Sprintf(
		"PC: %s SP: %s EVENT: %s ICOUNT: %s HALTED: %t USER: %t",
		pc, sp, event, icount, m.Halted, m.UserMode,
	)
}

// LogValue renders the machine's state as a structured log group.
func (m *Machine) LogValue() log.Value {
	pc, sp, event, icount, savedPC, arg1 := m.Registers()

	return log.GroupValue(
		log.String("PC", pc.String()),
		log.String("SP", sp.String()),
		log.String("EVENT", event.String()),
		log.String("ICOUNT", icount.String()),
		log.String("SAVED_PC", savedPC.String()),
		log.String("ARG1", arg1.String()),
		log.Any("HALTED", m.Halted),
		log.Any("USER", m.UserMode),
	)
}

// Current returns the instruction at the current PC, for dumps.
func (m *Machine) Current() isa.Instruction {
	pc, _ := m.Mem.Read(trap.PC)

	in, ok := m.Program.At(pc)
	if !ok {
		return isa.Instruction{}
	}

	return in
}

// Registers returns the current value of each register-window cell used by
// the trap protocol, for dumps and tests.
func (m *Machine) Registers() (pc, sp, event, icount, savedPC, arg1 word.Word) {
	pc, _ = m.Mem.Read(trap.PC)
	sp, _ = m.Mem.Read(trap.SP)
	event, _ = m.Mem.Read(trap.EVENT)
	icount, _ = m.Mem.Read(trap.ICOUNT)
	savedPC, _ = m.Mem.Read(trap.SAVED_PC)
	arg1, _ = m.Mem.Read(trap.ARG1)

	return
}
