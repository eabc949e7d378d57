package main

import (
	"github.com/spf13/cobra"

	"crambench/internal/config"
	"crambench/internal/results"
	"crambench/internal/scoring"
)

var reportRunID string

// reportCmd recomputes metrics from a stored run
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Recompute and print metrics for a completed run",
	Long: `Loads a completed run's per-question records and recomputes the
metrics from them. Aggregation is deterministic, so the printed numbers always
match what the run reported when it finished.`,
	RunE: reportRun,
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run-id", "", "Run identifier (required)")
	reportCmd.MarkFlagRequired("run-id")
}

func reportRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := results.Open(cfg.Paths.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Load(reportRunID)
	if err != nil {
		return err
	}

	printSummary(rec.RunID, scoring.Aggregate(rec.Result.Records))
	return nil
}
