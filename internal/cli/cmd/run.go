package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/halvard/machina/internal/cli"
	"github.com/halvard/machina/internal/console"
	"github.com/halvard/machina/internal/dump"
	"github.com/halvard/machina/internal/loader"
	"github.com/halvard/machina/internal/log"
	"github.com/halvard/machina/internal/machine"
	"github.com/halvard/machina/internal/mem"
	"github.com/halvard/machina/internal/trap"
	"github.com/halvard/machina/internal/word"
)

// fileConfig is the optional -config FILE format: a small TOML file that
// pins default debug level and memory size, so a test harness need not
// repeat flags on every invocation. It is additive to spec.md's CLI
// surface: explicit flags always win over the file.
type fileConfig struct {
	Debug      *int `toml:"debug"`
	MemorySize *int `toml:"memory_size"`
}

// run is the "run" sub-command: load a program image and execute it.
type run struct {
	flags *flag.FlagSet

	debugLevel int
	memorySize int
	configPath string
}

var _ cli.Command = (*run)(nil)

// Run constructs the "run" sub-command.
func Run() *run {
	r := &run{}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	// -D0|-D1|-D2|-D3 (spec.md §6's primary syntax) are each their own flag
	// name, since the stdlib flag package never parses a concatenated
	// "-D1" as flag "D" with value "1" (that requires "-D 1" or "-D=1",
	// the documented alternate, handled by the separate "D" flag below).
	fs.BoolFunc("D0", "debug verbosity: dump on halt (default)", func(string) error {
		r.debugLevel = int(dump.LevelHalt)
		return nil
	})
	fs.BoolFunc("D1", "debug verbosity: dump every step", func(string) error {
		r.debugLevel = int(dump.LevelStep)
		return nil
	})
	fs.BoolFunc("D2", "debug verbosity: dump every step, pause for ENTER", func(string) error {
		r.debugLevel = int(dump.LevelPause)
		return nil
	})
	fs.BoolFunc("D3", "debug verbosity: dump on event (trap/mode change)", func(string) error {
		r.debugLevel = int(dump.LevelEvent)
		return nil
	})
	fs.IntVar(&r.debugLevel, "D", int(dump.LevelHalt), "debug verbosity (0-3), space- or equals-separated")
	fs.IntVar(&r.memorySize, "m", mem.DefaultSize, "memory cell count")
	fs.IntVar(&r.memorySize, "memory-size", mem.DefaultSize, "memory cell count")
	fs.StringVar(&r.configPath, "config", "", "optional TOML file with default debug/memory-size values")

	r.flags = fs

	return r
}

func (r *run) FlagSet() *cli.FlagSet { return r.flags }

func (r *run) Description() string {
	return "run a program image"
}

func (r *run) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, "run [-D0|-D1|-D2|-D3] [-m cells] [-config file] <image>")
	return err
}

func (r *run) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	if err := r.applyConfigFile(); err != nil {
		logger.Error("config", "err", err)
		return 1
	}

	if len(args) == 0 {
		logger.Error("run: missing program image path")
		return 1
	}

	if r.memorySize < mem.MinSize {
		logger.Error("run: memory size too small", "SIZE", r.memorySize, "MIN", mem.MinSize)
		return 1
	}

	f, err := os.Open(args[0])
	if err != nil {
		logger.Error("run: cannot open image", "PATH", args[0], "err", err)
		return 1
	}
	defer f.Close()

	memory, err := mem.New(r.memorySize)
	if err != nil {
		logger.Error("run: memory", "err", err)
		return 1
	}

	program, err := loader.Load(f, memory, logger)
	if err != nil {
		logger.Error("run: image", "err", err)
		return 1
	}

	sink := console.NewSink(out)
	pauser := console.NewPauser(os.Stdin, os.Stderr, int(os.Stdin.Fd()))

	m := machine.New(memory, program,
		machine.WithLogger(logger),
		machine.WithPrintSink(sink),
	)

	level := dump.Level(r.debugLevel)

	// Step is driven by hand here, rather than Machine.Run, so each
	// iteration can dump/pause per the debug level; the cycle-ceiling
	// check below replicates Run's own enforcement (spec.md §5: "a
	// maximum-cycles ceiling is enforced to prevent runaway images").
	var cycles word.Word

	for !m.Halted {
		if m.CycleLimit > 0 && cycles >= m.CycleLimit {
			ceiling := &trap.CycleCeiling{Count: cycles}
			logger.Error("run: cycle ceiling reached", "err", ceiling)

			if level == dump.LevelHalt {
				_ = dump.Step(out, m, m.Current(), false, m.UserMode)
			}

			return 1
		}

		_, _, eventBefore, _, _, _ := m.Registers()
		userBefore := m.UserMode

		if err := m.Step(); err != nil {
			if errors.Is(err, machine.ErrHalted) {
				break
			}

			logger.Error("run: fatal fault", "err", err)

			if level == dump.LevelHalt {
				_ = dump.Step(out, m, m.Current(), true, m.UserMode)
			}

			return 1
		}

		cycles++

		if level == dump.LevelStep || level == dump.LevelPause {
			_ = dump.Step(out, m, m.Current(), m.Halted, m.UserMode)
		}

		if level == dump.LevelEvent {
			_, _, eventAfter, _, _, _ := m.Registers()
			if eventAfter != eventBefore || m.UserMode != userBefore {
				_ = dump.Event(out, m)
			}
		}

		if level == dump.LevelPause {
			if err := pauser.Pause(m); err != nil {
				logger.Error("run: pause", "err", err)
				return 1
			}
		}

		select {
		case <-ctx.Done():
			logger.Warn("run: cancelled")
			return 1
		default:
		}
	}

	if level == dump.LevelHalt {
		_ = dump.Step(out, m, m.Current(), true, m.UserMode)
	}

	return 0
}

// applyConfigFile loads -config's TOML defaults for any flag the caller did
// not explicitly pass on the command line.
func (r *run) applyConfigFile() error {
	if r.configPath == "" {
		return nil
	}

	var fc fileConfig

	if _, err := toml.DecodeFile(r.configPath, &fc); err != nil {
		return fmt.Errorf("run: config: %w", err)
	}

	explicit := map[string]bool{}
	r.flags.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	debugExplicit := explicit["D"] || explicit["D0"] || explicit["D1"] || explicit["D2"] || explicit["D3"]
	if fc.Debug != nil && !debugExplicit {
		r.debugLevel = *fc.Debug
	}

	if fc.MemorySize != nil && !explicit["m"] && !explicit["memory-size"] {
		r.memorySize = *fc.MemorySize
	}

	return nil
}
