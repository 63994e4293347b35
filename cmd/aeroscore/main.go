// Package main is the entry point of the aeroscore CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/aeroscore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
