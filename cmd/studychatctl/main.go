// Package main provides the entry point for the studychatctl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tailedflox9-maker/studychat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
