// Package main is the entry point for the stork CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ebalint/stork/cmd"
	"github.com/ebalint/stork/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
