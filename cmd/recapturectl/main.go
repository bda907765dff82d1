// Package main provides the recapturectl operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/recapturedocs/recapturedocs/cmd/recapturectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
