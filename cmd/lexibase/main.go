package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "lexibase",
	Short:   "Local vocabulary base with spaced repetition and sentence generation",
	Version: version,
	Long: `lexibase keeps your vocabulary in a local SQLite database, generates
example sentences for each word using a local Ollama model, and schedules
reviews with spaced repetition.

Run "lexibase serve" to start the server, then add words and study from
any other terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(wordsCmd)
	rootCmd.AddCommand(sentencesCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
