// Package cmd implements the rae command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rae",
	Short: "rae - adaptive hybrid retrieval over agent memory",
	Long: `rae runs hybrid retrieval over an agent's memory store: four
structurally different strategies (vector similarity, semantic facts,
entity-graph traversal, lexical full-text) searched concurrently, fused into
one ranking with weights that adapt to observed result quality.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
