// Package main is the entry point for the kb CLI tool.
package main

import (
	"os"

	"github.com/aidanlsb/kb/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
