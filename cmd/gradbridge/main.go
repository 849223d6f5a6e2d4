// Package main provides the gradbridge CLI.
package main

import (
	"os"

	"github.com/born-ml/gradbridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
