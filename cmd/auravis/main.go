// Package main is the entry point for the auravis CLI.
//
// Usage:
//
//	auravis [flags] <command> [args]
//
// Commands:
//
//	serve     - Run the visualization server
//	status    - Show session training status
//	reset     - Reset a session's audio state
//	train     - Force projector training
//	monitor   - Live terminal view of a session
//	simulate  - Stream synthetic audio to a session
//	export    - Export a session archive
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/auravis/auravis/cmd/auravis/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
