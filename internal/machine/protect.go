package machine

// protect.go implements the single entry point that mediates all
// instruction-initiated memory access (spec.md §4.3). Memory itself is
// region-agnostic; the privilege check lives here.

import (
	"errors"

	"github.com/halvard/machina/internal/mem"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

// Read loads the word at addr, enforcing the supervisor-private region
// against user-mode access and translating out-of-range errors per
// spec.md §4.3.
func (m *Machine) Read(addr word.Word) (word.Word, error) {
	if m.forbidden(addr) {
		return 0, &trap.MemoryFault{Addr: addr}
	}

	v, err := m.Mem.Read(addr)
	if err == nil {
		return v, nil
	}

	return 0, m.classify(addr, err)
}

// Write stores value at addr, with the same protection and classification
// rules as Read.
func (m *Machine) Write(addr, value word.Word) error {
	if m.forbidden(addr) {
		return &trap.MemoryFault{Addr: addr}
	}

	if err := m.Mem.Write(addr, value); err != nil {
		return m.classify(addr, err)
	}

	// Record that PC was touched directly, so Step can tell an idempotent
	// write to the current PC (e.g. a self-loop branch) apart from PC
	// never having been written at all (spec.md §4.4's "last write to PC
	// wins" rule must hold even when the written value equals the old one).
	if addr == trap.PC {
		m.pcWritten = true
	}

	return nil
}

// forbidden reports whether addr is off-limits to the current mode: the
// supervisor-private region, 21..999, is forbidden to user mode. The
// register window (0..20) and user space (1000..) are always reachable
// through this check; Memory's own bounds check still applies.
func (m *Machine) forbidden(addr word.Word) bool {
	return m.UserMode && addr >= trap.SupervisorStart && addr <= trap.SupervisorEnd
}

// classify turns a Memory out-of-range error into the fault appropriate for
// the current privilege mode.
func (m *Machine) classify(addr word.Word, err error) error {
	if !errors.Is(err, mem.ErrOutOfRange) {
		return err
	}

	if m.UserMode {
		return &trap.MemoryFault{Addr: addr}
	}

	return &trap.AddressingFault{Addr: addr}
}
