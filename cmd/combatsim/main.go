// Package main provides the combatsim binary that runs combat scenarios
// to completion and verifies that identical seeds replay identically.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "combatsim",
	Short: "Turn-based combat simulator",
	Long: `combatsim loads a combat scenario, drives it to completion through
the turn orchestrator, and reports the combat log together with the log and
queue state hashes used for determinism checks.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
}
