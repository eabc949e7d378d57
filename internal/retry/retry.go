// Package retry wraps single external calls with bounded backoff. The
// controller is stateless across items: failure-class policy is data (a
// Classifier), not control flow scattered through the loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Class is the retry disposition for one error.
type Class int

const (
	// Transient errors (network hiccups, timeouts) retry with exponential
	// backoff up to MaxAttempts.
	Transient Class = iota
	// RateLimited errors retry with a longer jittered delay, with no attempt
	// cap but a hard wall-clock ceiling.
	RateLimited
	// Fatal errors (malformed request, auth failure) propagate immediately.
	Fatal
)

// Classifier maps an error from the wrapped call to its Class.
type Classifier func(error) Class

// ErrExhausted marks a Transient or RateLimited error whose retry budget ran
// out. Callers treat it as fatal for the current item.
var ErrExhausted = errors.New("retry budget exhausted")

// Policy bounds the retries for one wrapped call.
type Policy struct {
	MaxAttempts      int           // attempt cap for Transient errors
	BaseDelay        time.Duration // exponential backoff base for Transient
	RateLimitDelay   time.Duration // base delay for RateLimited, jittered
	RateLimitCeiling time.Duration // wall-clock budget for RateLimited
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		BaseDelay:        time.Second,
		RateLimitDelay:   10 * time.Second,
		RateLimitCeiling: 2 * time.Minute,
	}
}

// Do invokes fn until it succeeds, its error classifies as Fatal, or the
// budget for its class runs out. A cancelled context propagates immediately
// so an interrupted run is distinguishable from a failed call.
func (p Policy) Do(ctx context.Context, classify Classifier, op string, fn func(context.Context) error) error {
	start := time.Now()
	attempts := 0

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch classify(err) {
		case Fatal:
			return fmt.Errorf("%s: %w", op, err)

		case RateLimited:
			delay := p.RateLimitDelay
			if jitter := int64(delay) / 2; jitter > 0 {
				delay += time.Duration(rand.Int63n(jitter))
			}
			if time.Since(start)+delay > p.RateLimitCeiling {
				return fmt.Errorf("%s: %w after %s rate-limited: %w", op, ErrExhausted, time.Since(start).Round(time.Millisecond), err)
			}
			if serr := sleep(ctx, delay); serr != nil {
				return serr
			}

		default: // Transient
			attempts++
			if attempts >= p.MaxAttempts {
				return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, attempts, err)
			}
			if serr := sleep(ctx, p.BaseDelay<<(attempts-1)); serr != nil {
				return serr
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
