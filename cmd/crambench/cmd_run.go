package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"crambench/internal/checkpoint"
	"crambench/internal/config"
	"crambench/internal/dataset"
	"crambench/internal/embedding"
	"crambench/internal/harness"
	"crambench/internal/llm"
	"crambench/internal/results"
	"crambench/internal/retrieval"
	"crambench/internal/retry"
	"crambench/internal/scoring"
)

var (
	runID     string
	stateless bool
)

// runCmd runs or resumes an evaluation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run or resume an evaluation",
	Long: `Runs the benchmark to completion and stores the result.

Without --run-id a fresh run starts under a new UUID. With --run-id of an
interrupted run, the run resumes from its checkpoint and produces the same
result an uninterrupted run would have.

With --stateless, items are evaluated independently with a worker pool and no
shared cheatsheet; use it for the no-learning baseline.`,
	RunE: runEvaluation,
}

func init() {
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (new UUID if omitted; pass an interrupted run's ID to resume)")
	runCmd.Flags().BoolVar(&stateless, "stateless", false, "Evaluate without shared memory, items in parallel")
}

func runEvaluation(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	questions, err := dataset.Load(cfg.Paths.Dataset, cfg.Run.DatasetSubset)
	if err != nil {
		return err
	}

	key := cfg.LLM.APIKey
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	timeout, err := cfg.LLM.ParsedTimeout()
	if err != nil {
		return err
	}

	client, err := llm.NewClient(ctx, key, cfg.LLM.Model, timeout)
	if err != nil {
		return err
	}
	engine, err := embedding.NewGenAIEngine(ctx, key, cfg.LLM.EmbeddingModel)
	if err != nil {
		return err
	}
	index, err := retrieval.Open(cfg.Retrieval.IndexPath, engine)
	if err != nil {
		return err
	}
	defer index.Close()

	resultsDB, err := results.Open(cfg.Paths.ResultsDB)
	if err != nil {
		return err
	}
	defer resultsDB.Close()

	id := runID
	if id == "" {
		id = uuid.NewString()
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Run.MaxRetryAttempts

	if stateless {
		result, err := harness.RunBatch(ctx, harness.BatchOptions{
			Questions:   questions,
			Retriever:   index,
			Generator:   client,
			Workers:     cfg.Run.WorkerCount,
			TopK:        cfg.Retrieval.TopK,
			RetryPolicy: policy,
			Classify:    llm.Classify,
		})
		if err != nil {
			return err
		}
		if err := resultsDB.Save(results.RunRecord{RunID: id, Mode: "stateless", Result: result}); err != nil {
			return err
		}
		printSummary(id, result)
		return nil
	}

	var seed string
	if cfg.Run.StartMode == config.StartWarm || cfg.Run.StartMode == config.StartBootstrap {
		seed, err = resultsDB.FinalMemory(cfg.Run.SeedRunID)
		if err != nil {
			return fmt.Errorf("cannot seed %s start from run %s: %w", cfg.Run.StartMode, cfg.Run.SeedRunID, err)
		}
	}

	checkpoints, err := checkpoint.NewManager(cfg.Paths.CheckpointDir, id)
	if err != nil {
		return err
	}

	runner, err := harness.NewRunner(harness.Options{
		RunID:              id,
		Questions:          questions,
		Retriever:          index,
		Generator:          client,
		Curator:            client,
		Checkpoints:        checkpoints,
		SeedMemory:         seed,
		CheckpointInterval: cfg.Run.CheckpointInterval,
		TopK:               cfg.Retrieval.TopK,
		RetryPolicy:        policy,
		Classify:           llm.Classify,
	})
	if err != nil {
		return err
	}

	outcome, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "run interrupted; resume with: crambench run --config %s --run-id %s\n", configPath, id)
		}
		return err
	}

	if err := resultsDB.Save(results.RunRecord{
		RunID:       id,
		Mode:        string(cfg.Run.StartMode),
		FinalMemory: outcome.FinalMemory,
		Result:      outcome.Result,
	}); err != nil {
		return err
	}

	printSummary(id, outcome.Result)
	return nil
}

func printSummary(id string, result scoring.Result) {
	fmt.Printf("run %s: %d questions\n", id, len(result.Records))
	fmt.Printf("  retrieval accuracy:  %.4f\n", result.RetrievalAccuracy)
	fmt.Printf("  answer accuracy:     %.4f\n", result.AnswerAccuracy)
	fmt.Printf("  end-to-end accuracy: %.4f\n", result.EndToEndAccuracy)

	formats := make([]string, 0, len(result.PerFormat))
	for format := range result.PerFormat {
		formats = append(formats, string(format))
	}
	sort.Strings(formats)
	for _, format := range formats {
		fa := result.PerFormat[dataset.Format(format)]
		fmt.Printf("  [%s] n=%d retrieval=%.4f answer=%.4f e2e=%.4f\n",
			format, fa.Count, fa.RetrievalAccuracy, fa.AnswerAccuracy, fa.EndToEndAccuracy)
	}
}
