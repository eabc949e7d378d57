package harness

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"crambench/internal/dataset"
	"crambench/internal/llm"
	"crambench/internal/logging"
	"crambench/internal/retrieval"
	"crambench/internal/retry"
	"crambench/internal/scoring"
)

// BatchOptions configures a stateless run. There is no memory, no curation,
// and no checkpointing: every item is independent, so items run concurrently.
type BatchOptions struct {
	Questions []dataset.Question

	Retriever retrieval.Retriever
	Generator llm.Generator

	Workers     int
	TopK        int
	Prompt      PromptConfig
	RetryPolicy retry.Policy
	Classify    retry.Classifier
}

// RunBatch evaluates every question with a bounded worker pool and returns
// the aggregated result. Records land at their question's dataset position,
// so output order matches input order regardless of scheduling.
func RunBatch(ctx context.Context, opts BatchOptions) (scoring.Result, error) {
	if len(opts.Questions) == 0 {
		return scoring.Result{}, fmt.Errorf("no questions to evaluate")
	}
	if opts.Retriever == nil || opts.Generator == nil {
		return scoring.Result{}, fmt.Errorf("retriever and generator are required")
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.TopK < 1 {
		opts.TopK = 5
	}
	if opts.Prompt.Instruction == "" {
		opts.Prompt = DefaultPrompt()
	}
	if opts.RetryPolicy.MaxAttempts == 0 {
		opts.RetryPolicy = retry.DefaultPolicy()
	}
	if opts.Classify == nil {
		opts.Classify = llm.Classify
	}

	log := logging.For(logging.CategoryHarness)
	log.Infow("stateless batch started", "questions", len(opts.Questions), "workers", opts.Workers)

	records := make([]scoring.Record, len(opts.Questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, q := range opts.Questions {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			rec, err := batchItem(gctx, opts, q)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return scoring.Result{}, err
	}

	result := scoring.Aggregate(records)
	log.Infow("stateless batch complete",
		"answer_accuracy", result.AnswerAccuracy,
		"end_to_end_accuracy", result.EndToEndAccuracy)
	return result, nil
}

// batchItem is processItem without the memory steps. A cancelled context is
// the only error; everything else degrades to a tagged record.
func batchItem(ctx context.Context, opts BatchOptions, q dataset.Question) (scoring.Record, error) {
	var passages []retrieval.Passage
	err := opts.RetryPolicy.Do(ctx, opts.Classify, "retrieve", func(ctx context.Context) error {
		var rerr error
		passages, rerr = opts.Retriever.Retrieve(ctx, q.Text, opts.TopK)
		return rerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return scoring.Record{}, ctx.Err()
		}
		return scoring.Score(q, nil, "", "retrieval: "+err.Error()), nil
	}

	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ID
	}

	var answer string
	err = opts.RetryPolicy.Do(ctx, opts.Classify, "generate", func(ctx context.Context) error {
		var gerr error
		answer, gerr = opts.Generator.Generate(ctx, buildPrompt(opts.Prompt, q, passages), "")
		return gerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return scoring.Record{}, ctx.Err()
		}
		return scoring.Score(q, ids, "", "generation: "+err.Error()), nil
	}

	return scoring.Score(q, ids, answer, ""), nil
}
