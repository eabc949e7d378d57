package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crambench/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFile    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crambench",
	Short: "crambench - test-time-learning QA evaluation harness",
	Long: `crambench evaluates a question-answering system that learns at test time.

A cumulative run walks the benchmark sequentially, letting a curator distill
each answered question into a shared cheatsheet the next questions can use.
Runs checkpoint as they go and resume exactly where they stopped. A stateless
mode evaluates the same benchmark without the cheatsheet for baselines.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		if err := logging.Init(level, logFile); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "eval.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
