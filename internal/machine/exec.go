package machine

// exec.go defines the fetch-execute-commit cycle (spec.md §4.4) and the trap
// delivery it triggers (spec.md §4.5).

import (
	"context"
	"errors"
	"fmt"

	"github.com/halvard/machina/internal/isa"
	"github.com/halvard/machina/internal/log"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

// ErrHalted is returned by Step when the machine has already halted.
var ErrHalted = errors.New("machine: halted")

// Run executes Step until the machine halts, a fault is fatal, the context
// is cancelled, or the cycle ceiling is reached.
func (m *Machine) Run(ctx context.Context) error {
	var cycles word.Word

	m.log.Info("START", log.Group("STATE", m))

	for {
		select {
		case <-ctx.Done():
			m.log.Warn("CANCELLED")
			return ctx.Err()
		default:
		}

		if m.Halted {
			break
		}

		if m.CycleLimit > 0 && cycles >= m.CycleLimit {
			return &trap.CycleCeiling{Count: cycles}
		}

		if err := m.Step(); err != nil {
			m.log.Error("HALTED (HCF)", "ERR", err, log.Group("STATE", m))
			return err
		}

		cycles++
	}

	m.log.Info("HALTED", log.Group("STATE", m))

	return nil
}

// Step runs a single instruction to completion: fetch, decode, execute,
// commit (spec.md §4.4).
func (m *Machine) Step() error {
	if m.Halted {
		return fmt.Errorf("step: %w", ErrHalted)
	}

	pcBefore, err := m.Read(trap.PC)
	if err != nil {
		return m.handleFault(err, pcBefore)
	}

	in, ok := m.Program.At(pcBefore)
	if !ok {
		// A fetch fault still counts as a step for ICOUNT.
		if icount, e := m.Read(trap.ICOUNT); e == nil {
			_ = m.Write(trap.ICOUNT, icount+1)
		}

		return m.handleFault(&trap.UnknownInstructionFault{PC: pcBefore}, pcBefore)
	}

	if in.Hole() {
		in = isa.Instruction{Op: isa.OpHLT}
	}

	m.pcWritten = false
	execErr := m.execute(in)

	// ICOUNT is incremented exactly once per step, even for a trap-producing
	// or faulting instruction (spec.md §4.2, §4.4).
	if icount, e := m.Read(trap.ICOUNT); e == nil {
		_ = m.Write(trap.ICOUNT, icount+1)
	}

	if execErr != nil {
		return m.handleFault(execErr, pcBefore)
	}

	if !m.Halted && !m.pcWritten {
		if err := m.Write(trap.PC, pcBefore+1); err != nil {
			return m.handleFault(err, pcBefore)
		}
	}

	m.log.Debug("executed", "IN", in, log.Group("STATE", m))

	return nil
}

// handleFault classifies an error raised during execute (or fetch) and
// either delivers it as a trap (user mode) or halts the machine fatally
// (kernel mode, or any fault the trap protocol does not cover).
func (m *Machine) handleFault(err error, pc word.Word) error {
	if m.UserMode {
		var (
			sc *trap.Syscall
			mf *trap.MemoryFault
			uf *trap.UnknownInstructionFault
			af *trap.ArithmeticFault
		)

		switch {
		case errors.As(err, &sc):
			return m.deliverTrap(sc.Kind, sc.Arg1, pc+1, m.Config.SyscallHandler)
		case errors.As(err, &mf):
			return m.deliverTrap(trap.EventMemoryFault, mf.Addr, pc, m.Config.MemoryFaultHandler)
		case errors.As(err, &uf):
			return m.deliverTrap(trap.EventUnknownInstruction, uf.PC, pc, m.Config.UnknownInstructionHandler)
		case errors.As(err, &af):
			return m.deliverTrap(trap.EventArithmeticFault, 0, pc, m.Config.ArithmeticFaultHandler)
		}
	}

	return m.fatal(err, pc)
}

// deliverTrap performs the five actions common to every trap (spec.md §4.5):
// drop to kernel mode, save state, and redirect PC to the fixed handler.
func (m *Machine) deliverTrap(event, arg1, savedPC, handler word.Word) error {
	m.UserMode = false

	_ = m.Write(trap.SAVED_PC, savedPC)
	_ = m.Write(trap.EVENT, event)
	_ = m.Write(trap.ARG1, arg1)

	return m.Write(trap.PC, handler)
}

// fatal halts the machine, preserving PC at the faulting instruction
// (spec.md §4.4: "any fault in kernel mode is fatal").
func (m *Machine) fatal(err error, pc word.Word) error {
	m.Halted = true

	_ = m.Write(trap.PC, pc)

	return fmt.Errorf("machine: fatal: %w", err)
}
