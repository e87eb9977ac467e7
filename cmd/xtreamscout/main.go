// Package main is the entry point for the xtreamscout CLI.
package main

import (
	"os"

	"github.com/xtreamscout/xtreamscout/cmd/xtreamscout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
