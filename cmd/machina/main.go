// cmd/machina is the command-line interface to the simulator.
package main

import (
	"context"
	"os"

	"github.com/halvard/machina/internal/cli"
	"github.com/halvard/machina/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Run(),
}

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			WithDefault(cmd.Run()).
			Execute(os.Args[1:])

	os.Exit(result)
}
