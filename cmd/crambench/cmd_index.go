package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crambench/internal/config"
	"crambench/internal/embedding"
	"crambench/internal/retrieval"
)

var passagesPath string

// indexCmd builds the retrieval index from a passage corpus
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the retrieval index from a passage corpus",
	Long: `Embeds a JSON passage corpus and stores it in the retrieval index.

The corpus file is a JSON array of {"passage_id": ..., "text": ...} objects.
Re-indexing an existing passage ID replaces it, so the command is safe to
re-run after corpus updates.`,
	RunE: buildIndex,
}

func init() {
	indexCmd.Flags().StringVar(&passagesPath, "passages", "", "Path to the passage corpus JSON (required)")
	indexCmd.MarkFlagRequired("passages")
}

// embedBatchSize keeps individual embedding requests within API payload limits.
const embedBatchSize = 64

func buildIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(passagesPath)
	if err != nil {
		return fmt.Errorf("failed to read corpus %s: %w", passagesPath, err)
	}
	var passages []retrieval.Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		return fmt.Errorf("failed to parse corpus %s: %w", passagesPath, err)
	}
	if len(passages) == 0 {
		return fmt.Errorf("corpus %s contains no passages", passagesPath)
	}

	key := cfg.LLM.APIKey
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	engine, err := embedding.NewGenAIEngine(cmd.Context(), key, cfg.LLM.EmbeddingModel)
	if err != nil {
		return err
	}

	index, err := retrieval.Open(cfg.Retrieval.IndexPath, engine)
	if err != nil {
		return err
	}
	defer index.Close()

	for start := 0; start < len(passages); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(passages) {
			end = len(passages)
		}
		if err := index.Index(cmd.Context(), passages[start:end]); err != nil {
			return fmt.Errorf("failed to index passages %d-%d: %w", start, end-1, err)
		}
	}

	count, err := index.Count()
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d passages into %s (%d total)\n", len(passages), cfg.Retrieval.IndexPath, count)
	return nil
}
