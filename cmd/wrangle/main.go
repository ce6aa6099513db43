// Package main provides the wrangle command.
package main

import (
	"os"

	"github.com/leapstack-labs/wrangle/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
