// Package llm provides the generation and curation collaborators the harness
// calls per item, plus the call-error taxonomy the retry classifier inspects.
package llm

import (
	"context"

	"crambench/internal/dataset"
)

// MaxMemoryBytes bounds the curator's output. The memory store never
// truncates; a curator result over this limit is a fatal curation failure for
// that item and the prior memory stands.
const MaxMemoryBytes = 64 << 10

// Generator produces an answer for one question prompt, reading (never
// writing) the current shared memory.
type Generator interface {
	Generate(ctx context.Context, prompt, memoryContext string) (string, error)
}

// Curator produces the full next-state memory text from the prior memory and
// the item just processed.
type Curator interface {
	Curate(ctx context.Context, priorMemory string, q dataset.Question, answer string) (string, error)
}
