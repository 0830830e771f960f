// Package loader parses a program image (spec.md §6) into a Memory and an
// instruction Program in a single pass over the source.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/halvard/machina/internal/isa"
	"github.com/halvard/machina/internal/log"
	"github.com/halvard/machina/internal/mem"
	"github.com/halvard/machina/internal/word"
)

const (
	dataSectionBegin = "Begin Data Section"
	dataSectionEnd   = "End Data Section"
	instrSectionBeg  = "Begin Instruction Section"
	instrSectionEnd  = "End Instruction Section"
)

// SyntaxError reports a malformed image line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("loader: line %d: %s", e.Line, e.Msg)
}

type sectionState int

const (
	stateNone sectionState = iota
	stateData
	stateInstr
)

// Load reads a program image from r, writing its data section into m and
// returning the decoded instruction table. Either section may be absent;
// a begin marker without its matching end marker is a syntax error.
// Non-sequential instruction indices are tolerated (and warned about via
// logger, if non-nil); gaps become implicit HLT holes (spec.md §4.4).
func Load(r io.Reader, m *mem.Memory, logger *log.Logger) (isa.Program, error) {
	scanner := bufio.NewScanner(r)

	var (
		state               sectionState
		seenData, seenInstr bool
		lineNo              int
		program             isa.Program
		lastIndex           = -1
		sawFirstInstruction bool
	)

	for scanner.Scan() {
		lineNo++

		line := stripComment(scanner.Text())
		trimmed := strings.TrimSpace(line)

		switch trimmed {
		case "":
			continue

		case dataSectionBegin:
			if seenData {
				return nil, &SyntaxError{Line: lineNo, Msg: "duplicate data section"}
			}

			if state != stateNone {
				return nil, &SyntaxError{Line: lineNo, Msg: "nested section"}
			}

			seenData, state = true, stateData

			continue

		case dataSectionEnd:
			if state != stateData {
				return nil, &SyntaxError{Line: lineNo, Msg: "end data section without begin"}
			}

			state = stateNone

			continue

		case instrSectionBeg:
			if seenInstr {
				return nil, &SyntaxError{Line: lineNo, Msg: "duplicate instruction section"}
			}

			if state != stateNone {
				return nil, &SyntaxError{Line: lineNo, Msg: "nested section"}
			}

			seenInstr, state = true, stateInstr

			continue

		case instrSectionEnd:
			if state != stateInstr {
				return nil, &SyntaxError{Line: lineNo, Msg: "end instruction section without begin"}
			}

			state = stateNone

			continue
		}

		switch state {
		case stateData:
			addr, val, err := mem.ParseDataLine(trimmed)
			if err != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
			}

			if err := m.Write(addr, val); err != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
			}

		case stateInstr:
			idx, in, err := parseInstructionLine(trimmed)
			if err != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
			}

			if sawFirstInstruction && idx != lastIndex+1 && logger != nil {
				logger.Warn("non-sequential instruction index",
					"LINE", lineNo, "INDEX", idx, "PREVIOUS", lastIndex)
			}

			sawFirstInstruction = true

			for len(program) <= idx {
				program = append(program, isa.Instruction{})
			}

			program[idx] = in
			lastIndex = idx

		default:
			return nil, &SyntaxError{Line: lineNo, Msg: "line outside any section"}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if state != stateNone {
		return nil, &SyntaxError{Line: lineNo, Msg: "unterminated section"}
	}

	return program, nil
}

// parseInstructionLine parses "<index> <MNEMONIC> [operand1[, operand2]]",
// with SYSCALL's subtype token consuming the first operand slot.
func parseInstructionLine(line string) (int, isa.Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, isa.Instruction{}, fmt.Errorf("malformed instruction line %q", line)
	}

	idx, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, isa.Instruction{}, fmt.Errorf("bad instruction index %q: %w", fields[0], err)
	}

	op, ok := isa.ParseMnemonic(fields[1])
	if !ok {
		return 0, isa.Instruction{}, fmt.Errorf("unknown mnemonic %q", fields[1])
	}

	rest := strings.Join(fields[2:], " ")
	operands := splitOperands(rest)

	in := isa.Instruction{Op: op, Source: line}

	if op == isa.OpSYSCALL {
		if len(operands) < 1 {
			return 0, isa.Instruction{}, fmt.Errorf("syscall missing subtype: %q", line)
		}

		kind, ok := isa.ParseSyscallKind(operands[0])
		if !ok {
			return 0, isa.Instruction{}, fmt.Errorf("unknown syscall subtype %q", operands[0])
		}

		in.Syscall = kind
		operands = operands[1:]
	}

	in.Operands = len(operands)

	args, err := parseWords(operands)
	if err != nil {
		return 0, isa.Instruction{}, err
	}

	if len(args) > 0 {
		in.Arg1 = args[0]
	}

	if len(args) > 1 {
		in.Arg2 = args[1]
	}

	return idx, in, nil
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		out = append(out, p)
	}

	if len(out) <= 1 {
		return strings.Fields(s)
	}

	return out
}

func parseWords(operands []string) ([]word.Word, error) {
	words := make([]word.Word, 0, len(operands))

	for _, o := range operands {
		n, err := strconv.ParseInt(o, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad operand %q: %w", o, err)
		}

		words = append(words, word.Word(n))
	}

	return words, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}

	return line
}
