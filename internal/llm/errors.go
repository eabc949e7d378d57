package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"crambench/internal/retry"
)

// TransientCallError marks a call failure worth retrying with short backoff:
// network hiccups, timeouts, empty responses.
type TransientCallError struct {
	Op  string
	Err error
}

func (e *TransientCallError) Error() string { return fmt.Sprintf("%s: transient: %v", e.Op, e.Err) }
func (e *TransientCallError) Unwrap() error { return e.Err }

// RateLimitError marks a quota rejection; retried on a longer, jittered
// schedule bounded by wall clock rather than attempt count.
type RateLimitError struct {
	Op  string
	Err error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s: rate limited: %v", e.Op, e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

// FatalCallError marks a failure no retry can fix: malformed request, auth
// failure, curator output over the memory bound.
type FatalCallError struct {
	Op  string
	Err error
}

func (e *FatalCallError) Error() string { return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err) }
func (e *FatalCallError) Unwrap() error { return e.Err }

// Classify is the default retry classifier for generation, curation, and
// retrieval calls. Unrecognized failures classify as transient: in a long
// evaluation, retrying an unknown error once beats failing the item outright.
func Classify(err error) retry.Class {
	var fatal *FatalCallError
	if errors.As(err, &fatal) {
		return retry.Fatal
	}
	var limited *RateLimitError
	if errors.As(err, &limited) {
		return retry.RateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Transient
	}
	return retry.Transient
}
