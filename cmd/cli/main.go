// Package main is the entry point for the outpost CLI.
// The CLI is the developer terminal tool for interacting with the outpost API.
package main

import (
	"os"

	"outpost/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
