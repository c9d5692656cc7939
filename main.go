// Package main provides the entry point for the withdrawoor application.
package main

import (
	"os"

	"github.com/ethpandaops/withdrawoor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
