/*
Package machine implements the CPU interpreter for the machine: a
register-poor, memory-mapped simulator that runs a cooperative
multithreaded supervisor written in the machine's own assembly.

# Registers, in memory #

Almost all CPU state lives in memory, not in Go struct fields. Only two
flags are truly CPU-internal: Halted and UserMode. Everything else — the
program counter, the stack pointer, the event code, the instruction count,
the saved PC and the trap argument — are memory cells at fixed low
addresses (see package trap). Every read or write of these cells, by the
CPU or by executing instructions, goes through the same protection-checked
path, Machine.Read/Machine.Write.

	+===============+  N-1
	|  user space   |  stacks, user data
	|  (1000..N-1)  |
	+===============+  999
	|  supervisor   |  forbidden to user mode
	|  (21..999)    |
	+===============+  20
	| register      |  PC SP EVENT ICOUNT SAVED_PC ARG1 ...
	| window (0..20)|  always accessible
	+===============+  0

# Protection #

A single entry point, the protection wrapper, mediates every
instruction-initiated memory access. In user mode, any address in
21..999 is forbidden and raises a MemoryFault; everything else is
delegated to Memory, whose own out-of-range errors are translated into a
MemoryFault (user mode) or an AddressingFault (kernel mode, fatal).

# Traps #

There is no interrupt controller and no preemption: the machine is
strictly synchronous, one instruction at a time. The only control-flow
events besides normal execution are traps: SYSCALL instructions and
faults, which save state to the register window and redirect the
program counter to a fixed handler address. The supervisor clears EVENT
and returns to user code with the USER instruction; there is no
return-from-trap instruction, the handoff is entirely cooperative.
*/
package machine
