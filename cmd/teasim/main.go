// Command teasim runs, validates and replays tea simulation scenarios.
package main

import (
	"os"

	"github.com/vfaabeso/tea-simulation/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
