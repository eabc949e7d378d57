// Package harness drives the evaluation loop: sequential cumulative runs with
// an evolving shared memory, and a stateless parallel mode for baselines.
package harness

import (
	"context"
	"fmt"
	"strings"

	"crambench/internal/checkpoint"
	"crambench/internal/dataset"
	"crambench/internal/llm"
	"crambench/internal/logging"
	"crambench/internal/memory"
	"crambench/internal/retrieval"
	"crambench/internal/retry"
	"crambench/internal/scoring"
)

// State is the loop controller's lifecycle phase.
type State int

const (
	StateInit State = iota
	StateRestoring
	StateRunning
	StateCheckpointing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRestoring:
		return "restoring"
	case StateRunning:
		return "running"
	case StateCheckpointing:
		return "checkpointing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// PromptConfig is the prompt wording for a run, fixed at start. It travels
// with the options rather than living in a mutable global, so two runs can
// never observe each other's prompt.
type PromptConfig struct {
	Instruction string
}

// DefaultPrompt returns the standard answering instruction.
func DefaultPrompt() PromptConfig {
	return PromptConfig{Instruction: "Answer the question using the evidence below."}
}

// Options configures one cumulative run.
type Options struct {
	RunID     string
	Questions []dataset.Question

	Retriever retrieval.Retriever
	Generator llm.Generator
	Curator   llm.Curator

	Checkpoints *checkpoint.Manager

	// SeedMemory is the initial memory content: empty for a cold start, a
	// prior run's final memory for warm and bootstrap starts. Ignored when a
	// checkpoint exists, since the checkpoint already embeds it.
	SeedMemory string

	CheckpointInterval int
	TopK               int
	Prompt             PromptConfig
	RetryPolicy        retry.Policy
	Classify           retry.Classifier
}

// Outcome is what a finished run hands back.
type Outcome struct {
	Result      scoring.Result
	FinalMemory string
	Resumed     bool
}

// Runner executes one cumulative run. Not reusable: build a new Runner per
// Run call.
type Runner struct {
	opts    Options
	state   State
	memory  *memory.Store
	records []scoring.Record
	start   int
}

// NewRunner validates the options and returns a runner in StateInit.
func NewRunner(opts Options) (*Runner, error) {
	if opts.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if len(opts.Questions) == 0 {
		return nil, fmt.Errorf("no questions to evaluate")
	}
	if opts.Retriever == nil || opts.Generator == nil || opts.Curator == nil {
		return nil, fmt.Errorf("retriever, generator, and curator are all required")
	}
	if opts.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint manager is required")
	}
	if opts.CheckpointInterval < 1 {
		opts.CheckpointInterval = 10
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
	return &Runner{opts: opts, state: StateInit}, nil
}

// State returns the current lifecycle phase.
func (r *Runner) State() State {
	return r.state
}

// Run executes the loop to completion or interruption. An interrupted run
// leaves a checkpoint behind and returns the context's error; calling Run
// again on a fresh Runner with the same options resumes it.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	log := logging.For(logging.CategoryHarness)

	resumed, err := r.restore()
	if err != nil {
		r.state = StateFailed
		return nil, err
	}

	r.state = StateRunning
	log.Infow("run started",
		"run_id", r.opts.RunID, "questions", len(r.opts.Questions),
		"start_index", r.start, "resumed", resumed)

	for i := r.start; i < len(r.opts.Questions); i++ {
		// Interruption happens only between items: everything recorded so
		// far is durable, the current item will be re-processed on resume.
		if ctx.Err() != nil {
			return nil, r.interrupt(ctx.Err())
		}

		rec, err := r.processItem(ctx, r.opts.Questions[i])
		if err != nil {
			return nil, r.interrupt(err)
		}
		r.records = append(r.records, rec)

		if (i+1)%r.opts.CheckpointInterval == 0 && i+1 < len(r.opts.Questions) {
			r.state = StateCheckpointing
			if err := r.saveCheckpoint(); err != nil {
				r.state = StateFailed
				return nil, err
			}
			r.state = StateRunning
		}
	}

	result := scoring.Aggregate(r.records)
	if err := r.opts.Checkpoints.Clear(); err != nil {
		r.state = StateFailed
		return nil, err
	}
	r.state = StateComplete

	log.Infow("run complete",
		"run_id", r.opts.RunID,
		"retrieval_accuracy", result.RetrievalAccuracy,
		"answer_accuracy", result.AnswerAccuracy,
		"end_to_end_accuracy", result.EndToEndAccuracy)

	return &Outcome{Result: result, FinalMemory: r.memory.Read(), Resumed: resumed}, nil
}

// restore loads the prior checkpoint if one exists. A corrupt checkpoint is
// fatal: silently restarting from zero would rebuild the memory trajectory
// from scratch while claiming to be the same run.
func (r *Runner) restore() (bool, error) {
	r.state = StateRestoring

	cp, err := r.opts.Checkpoints.Load()
	switch {
	case err == nil:
		r.memory = memory.Restore(cp.MemorySnapshot, cp.MemoryVersion)
		r.records = cp.Records
		r.start = cp.LastCompletedIndex + 1
		return true, nil
	case err == checkpoint.ErrNotFound:
		r.memory = memory.NewStore(r.opts.SeedMemory)
		return false, nil
	default:
		return false, fmt.Errorf("cannot restore run %s: %w", r.opts.RunID, err)
	}
}

// interrupt persists progress before handing the error up. With no completed
// items there is nothing worth persisting.
func (r *Runner) interrupt(cause error) error {
	if len(r.records) > 0 {
		if err := r.saveCheckpoint(); err != nil {
			logging.For(logging.CategoryHarness).Errorw("checkpoint on interrupt failed",
				"run_id", r.opts.RunID, "error", err)
		}
	}
	logging.For(logging.CategoryHarness).Infow("run interrupted",
		"run_id", r.opts.RunID, "completed", len(r.records), "cause", cause)
	return cause
}

func (r *Runner) saveCheckpoint() error {
	return r.opts.Checkpoints.Save(&checkpoint.Checkpoint{
		RunID:              r.opts.RunID,
		LastCompletedIndex: len(r.records) - 1,
		MemorySnapshot:     r.memory.Read(),
		MemoryVersion:      r.memory.Version(),
		Records:            r.records,
	})
}

// processItem runs retrieve, generate, score, curate for one question. A
// failed sub-step degrades to a tagged record and the loop continues; only a
// cancelled context returns an error, leaving the item unrecorded so resume
// re-processes it.
func (r *Runner) processItem(ctx context.Context, q dataset.Question) (scoring.Record, error) {
	log := logging.For(logging.CategoryHarness)

	var passages []retrieval.Passage
	err := r.opts.RetryPolicy.Do(ctx, r.opts.Classify, "retrieve", func(ctx context.Context) error {
		var rerr error
		passages, rerr = r.opts.Retriever.Retrieve(ctx, q.Text, r.opts.TopK)
		return rerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return scoring.Record{}, ctx.Err()
		}
		log.Warnw("retrieval failed", "question_id", q.ID, "error", err)
		return scoring.Score(q, nil, "", "retrieval: "+err.Error()), nil
	}

	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ID
	}

	// The memory read before generation is the exact state after the previous
	// item's curation; generation and curation of this item both see it.
	prior := r.memory.Read()
	prompt := buildPrompt(r.opts.Prompt, q, passages)

	var answer string
	err = r.opts.RetryPolicy.Do(ctx, r.opts.Classify, "generate", func(ctx context.Context) error {
		var gerr error
		answer, gerr = r.opts.Generator.Generate(ctx, prompt, prior)
		return gerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return scoring.Record{}, ctx.Err()
		}
		log.Warnw("generation failed", "question_id", q.ID, "error", err)
		return scoring.Score(q, ids, "", "generation: "+err.Error()), nil
	}

	rec := scoring.Score(q, ids, answer, "")

	var next string
	err = r.opts.RetryPolicy.Do(ctx, r.opts.Classify, "curate", func(ctx context.Context) error {
		var cerr error
		next, cerr = r.opts.Curator.Curate(ctx, prior, q, answer)
		return cerr
	})
	if err != nil && ctx.Err() != nil {
		return scoring.Record{}, ctx.Err()
	}
	if err == nil && len(next) > llm.MaxMemoryBytes {
		err = fmt.Errorf("curated memory is %d bytes, limit %d", len(next), llm.MaxMemoryBytes)
	}
	if err != nil {
		// The answer already scored; only the memory update is lost and the
		// prior memory stands for the next item.
		log.Warnw("curation failed, memory unchanged", "question_id", q.ID, "error", err)
		rec.Failure = "curation: " + err.Error()
		return rec, nil
	}

	r.memory.Merge(next)
	return rec, nil
}

// buildPrompt assembles the question prompt with its retrieved evidence.
func buildPrompt(pc PromptConfig, q dataset.Question, passages []retrieval.Passage) string {
	var b strings.Builder
	b.WriteString(pc.Instruction)
	b.WriteString("\n\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "[%s] %s\n", p.ID, p.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(q.Text)
	return b.String()
}
