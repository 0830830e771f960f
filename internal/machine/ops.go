package machine

// ops.go implements the semantics of each instruction (spec.md §4.2). Every
// memory access goes through the protection wrapper in protect.go.

import (
	"fmt"

	"github.com/halvard/machina/internal/isa"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

// execute performs the semantics of in, returning a *trap.Syscall,
// *trap.MemoryFault or *trap.ArithmeticFault when the instruction cycle
// should be delivered as a trap, or any memory error encountered along the
// way.
func (m *Machine) execute(in isa.Instruction) error {
	switch in.Op {
	case isa.OpSET:
		return m.Write(in.Arg2, in.Arg1)

	case isa.OpCPY:
		v, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		return m.Write(in.Arg2, v)

	case isa.OpCPYI:
		ptr, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		v, err := m.Read(ptr)
		if err != nil {
			return err
		}

		return m.Write(in.Arg2, v)

	case isa.OpCPYI2:
		srcPtr, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		v, err := m.Read(srcPtr)
		if err != nil {
			return err
		}

		dstPtr, err := m.Read(in.Arg2)
		if err != nil {
			return err
		}

		return m.Write(dstPtr, v)

	case isa.OpADD:
		v, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		sum, overflow := word.AddOverflows(v, in.Arg2)
		if overflow {
			return &trap.ArithmeticFault{Op: "ADD"}
		}

		return m.Write(in.Arg1, sum)

	case isa.OpADDI:
		v1, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		v2, err := m.Read(in.Arg2)
		if err != nil {
			return err
		}

		sum, overflow := word.AddOverflows(v1, v2)
		if overflow {
			return &trap.ArithmeticFault{Op: "ADDI"}
		}

		return m.Write(in.Arg1, sum)

	case isa.OpSUBI:
		v1, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		v2, err := m.Read(in.Arg2)
		if err != nil {
			return err
		}

		diff, overflow := word.SubOverflows(v1, v2)
		if overflow {
			return &trap.ArithmeticFault{Op: "SUBI"}
		}

		return m.Write(in.Arg2, diff)

	case isa.OpJIF:
		v, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		if v <= 0 {
			return m.Write(trap.PC, in.Arg2)
		}

		return nil

	case isa.OpPUSH:
		return m.push(in.Arg1)

	case isa.OpPOP:
		return m.pop(in.Arg1)

	case isa.OpCALL:
		return m.call(in.Arg1)

	case isa.OpRET:
		return m.ret()

	case isa.OpHLT:
		m.Halted = true
		return nil

	case isa.OpUSER:
		target, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		if err := m.Write(trap.PC, target); err != nil {
			return err
		}

		m.UserMode = true

		return nil

	case isa.OpLOADI:
		ptr, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		v, err := m.Read(ptr)
		if err != nil {
			return err
		}

		return m.Write(in.Arg2, v)

	case isa.OpSTOREI:
		v, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		ptr, err := m.Read(in.Arg2)
		if err != nil {
			return err
		}

		return m.Write(ptr, v)

	case isa.OpSYSCALL:
		return m.syscall(in)

	default:
		return &trap.UnknownInstructionFault{}
	}
}

// push decrements SP and stores mem[addr] at the new top of stack.
func (m *Machine) push(addr word.Word) error {
	sp, err := m.Read(trap.SP)
	if err != nil {
		return err
	}

	sp--
	if sp < 0 {
		return trap.NewStackFault(sp)
	}

	v, err := m.Read(addr)
	if err != nil {
		return err
	}

	if err := m.Write(trap.SP, sp); err != nil {
		return err
	}

	return m.Write(sp, v)
}

// pop loads the top of stack into mem[addr] and increments SP.
func (m *Machine) pop(addr word.Word) error {
	sp, err := m.Read(trap.SP)
	if err != nil {
		return err
	}

	v, err := m.Read(sp)
	if err != nil {
		return err
	}

	if err := m.Write(addr, v); err != nil {
		return err
	}

	return m.Write(trap.SP, sp+1)
}

// call pushes the return address (the instruction following CALL) and jumps
// to target.
func (m *Machine) call(target word.Word) error {
	pc, err := m.Read(trap.PC)
	if err != nil {
		return err
	}

	sp, err := m.Read(trap.SP)
	if err != nil {
		return err
	}

	sp--
	if sp < 0 {
		return trap.NewStackFault(sp)
	}

	if err := m.Write(trap.SP, sp); err != nil {
		return err
	}

	if err := m.Write(sp, pc+1); err != nil {
		return err
	}

	return m.Write(trap.PC, target)
}

// ret pops the return address left by CALL into PC.
func (m *Machine) ret() error {
	sp, err := m.Read(trap.SP)
	if err != nil {
		return err
	}

	retAddr, err := m.Read(sp)
	if err != nil {
		return err
	}

	if err := m.Write(trap.PC, retAddr); err != nil {
		return err
	}

	return m.Write(trap.SP, sp+1)
}

// syscall performs the synchronous side effects of a SYSCALL instruction
// (the PRN print happens here, before the trap, per spec.md §4.2) and
// returns a *trap.Syscall signal for the instruction cycle to deliver.
func (m *Machine) syscall(in isa.Instruction) error {
	switch in.Syscall {
	case isa.SyscallPRN:
		v, err := m.Read(in.Arg1)
		if err != nil {
			return err
		}

		if err := m.Print.Print(v); err != nil {
			return fmt.Errorf("syscall: prn: %w", err)
		}

		return &trap.Syscall{Kind: trap.EventSyscallPRN, Arg1: in.Arg1}

	case isa.SyscallHLT:
		return &trap.Syscall{Kind: trap.EventSyscallHLT}

	case isa.SyscallYIELD:
		return &trap.Syscall{Kind: trap.EventSyscallYIELD}

	default:
		return &trap.UnknownInstructionFault{}
	}
}
