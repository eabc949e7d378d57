package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"crambench/internal/dataset"
	"crambench/internal/logging"
)

const generateSystemPrompt = `You answer benchmark questions using the provided evidence passages.
Answer with only the final answer, no explanation. If the question cannot be
answered from the evidence, answer exactly: Not answerable.`

const curateSystemPrompt = `You maintain a cheatsheet of concise, reusable insights for answering
benchmark questions. Given the current cheatsheet and the question just
processed, output the full updated cheatsheet text and nothing else. Keep it
under 8000 words; drop stale entries rather than growing without bound.`

// Client implements Generator and Curator against the Gemini API.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a Gemini-backed client.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{client: client, model: model, timeout: timeout}, nil
}

// Generate answers one question prompt. The memory context is injected as a
// cheatsheet section ahead of the prompt; empty memory adds nothing.
func (c *Client) Generate(ctx context.Context, prompt, memoryContext string) (string, error) {
	var user strings.Builder
	if memoryContext != "" {
		user.WriteString("Cheatsheet of insights from earlier questions:\n")
		user.WriteString(memoryContext)
		user.WriteString("\n\n")
	}
	user.WriteString(prompt)

	return c.complete(ctx, "generate", generateSystemPrompt, user.String())
}

// Curate produces the next cheatsheet. Output over MaxMemoryBytes is a fatal
// failure for this item: the memory store never truncates, so an unbounded
// result must not reach it.
func (c *Client) Curate(ctx context.Context, priorMemory string, q dataset.Question, answer string) (string, error) {
	var user strings.Builder
	user.WriteString("Current cheatsheet:\n")
	if priorMemory == "" {
		user.WriteString("(empty)\n")
	} else {
		user.WriteString(priorMemory)
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "\nQuestion just processed: %s\nAnswer given: %s\n", q.Text, answer)
	user.WriteString("\nOutput the full updated cheatsheet:")

	next, err := c.complete(ctx, "curate", curateSystemPrompt, user.String())
	if err != nil {
		return "", err
	}
	if len(next) > MaxMemoryBytes {
		return "", &FatalCallError{Op: "curate", Err: fmt.Errorf("memory output %d bytes exceeds bound %d", len(next), MaxMemoryBytes)}
	}
	return next, nil
}

func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	// Apply the call timeout only when the caller hasn't set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logging.For(logging.CategoryLLM)
	start := time.Now()
	log.Debugw("calling model", "op", op, "model", c.model, "user_len", len(user))

	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	})
	if err != nil {
		log.Warnw("model call failed", "op", op, "elapsed", time.Since(start), "err", err)
		return "", classifyAPIError(op, err)
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
		break // only the first candidate is used
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &TransientCallError{Op: op, Err: fmt.Errorf("no completion returned")}
	}

	log.Debugw("model call completed", "op", op, "elapsed", time.Since(start), "response_len", len(text))
	return text, nil
}

// classifyAPIError buckets a Gemini API failure into the call taxonomy.
// The SDK does not expose stable error types for every failure mode, so this
// matches status text the same way it appears in API responses.
func classifyAPIError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientCallError{Op: op, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return &RateLimitError{Op: op, Err: err}
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "400") || strings.Contains(msg, "api key") ||
		strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission_denied") ||
		strings.Contains(msg, "invalid_argument"):
		return &FatalCallError{Op: op, Err: err}
	default:
		return &TransientCallError{Op: op, Err: err}
	}
}
