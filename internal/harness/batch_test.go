package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crambench/internal/llm"
)

func TestRunBatch(t *testing.T) {
	qs := fiveQuestions()
	gen := newScriptedGenerator(qs)

	result, err := RunBatch(context.Background(), BatchOptions{
		Questions:   qs,
		Retriever:   newMapRetriever(qs),
		Generator:   gen,
		Workers:     3,
		TopK:        3,
		RetryPolicy: fastPolicy(),
		Classify:    llm.Classify,
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 5)
	for i, q := range qs {
		assert.Equal(t, q.ID, result.Records[i].QuestionID, "records hold dataset order")
	}
	assert.Equal(t, 1.0, result.AnswerAccuracy)
	assert.Equal(t, 1.0, result.EndToEndAccuracy)

	// Stateless means stateless: no worker ever sees a memory context.
	for _, seen := range gen.seenMemory {
		assert.Empty(t, seen)
	}
}

func TestRunBatchDegradesFailures(t *testing.T) {
	qs := fiveQuestions()
	gen := newScriptedGenerator(qs)
	gen.errFor["q3"] = &llm.FatalCallError{Op: "generate", Err: errors.New("bad request")}

	result, err := RunBatch(context.Background(), BatchOptions{
		Questions:   qs,
		Retriever:   newMapRetriever(qs),
		Generator:   gen,
		Workers:     2,
		RetryPolicy: fastPolicy(),
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 5)
	assert.Contains(t, result.Records[2].Failure, "generation")
	assert.InDelta(t, 4.0/5.0, result.AnswerAccuracy, 1e-9)
}

func TestRunBatchValidation(t *testing.T) {
	qs := fiveQuestions()

	_, err := RunBatch(context.Background(), BatchOptions{
		Retriever: newMapRetriever(qs),
		Generator: newScriptedGenerator(qs),
	})
	assert.Error(t, err, "empty question list")

	_, err = RunBatch(context.Background(), BatchOptions{Questions: qs})
	assert.Error(t, err, "missing collaborators")
}

func TestRunBatchHonorsCancellation(t *testing.T) {
	qs := fiveQuestions()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBatch(ctx, BatchOptions{
		Questions:   qs,
		Retriever:   newMapRetriever(qs),
		Generator:   newScriptedGenerator(qs),
		RetryPolicy: fastPolicy(),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
