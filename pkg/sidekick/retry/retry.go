// Package retry provides error categorization and backoff retry for the
// transport calls the agent loop depends on. Classification is injected so
// the package stays free of provider knowledge; the llm package supplies a
// classifier for its own error taxonomy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Category represents how an error should be handled.
type Category int

const (
	// Transient indicates retry will likely help.
	// Examples: rate limits, timeouts, provider overload.
	Transient Category = iota

	// Permanent indicates retry won't help.
	// Examples: authentication failures, malformed requests.
	Permanent

	// Escalatable indicates the same call might succeed with a different
	// model or prompt. Examples: structured output validation failures.
	Escalatable
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case Escalatable:
		return "escalatable"
	default:
		return "unknown"
	}
}

// ClassifyFunc maps an error to its handling category.
type ClassifyFunc func(error) Category

// HintFunc extracts a provider-supplied wait hint from an error, zero when
// none exists.
type HintFunc func(error) time.Duration

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// Classify decides whether an attempt's error is worth retrying.
	// Nil means every error is Permanent.
	Classify ClassifyFunc

	// Hint, when set, lets provider wait hints (e.g. Retry-After) extend
	// the computed backoff.
	Hint HintFunc
}

// Default is the standard retry policy.
var Default = Policy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// Aggressive retries more times with shorter backoff.
var Aggressive = Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	BackoffFactor:  1.5,
	Jitter:         0.2,
}

// None disables retries.
var None = Policy{
	MaxAttempts: 1,
}

// Error wraps the final error of an exhausted or abandoned retry loop.
type Error struct {
	// Err is the underlying error from the last attempt.
	Err error

	// Category is the classification that stopped the loop.
	Category Category

	// Attempts is the number of attempts made.
	Attempts int

	// Exhausted is true when the attempt budget ran out on a retryable
	// error, false when a non-retryable error stopped the loop early.
	Exhausted bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("retry budget exhausted after %d attempts: %v (category: %s)",
			e.Attempts, e.Err, e.Category)
	}
	return fmt.Sprintf("%v (category: %s, attempts: %d)", e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Result contains the outcome of a retry loop.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the final error if all attempts failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent.
	Duration time.Duration
}

// Do executes fn with retries, respecting context cancellation. The first
// nil error wins; non-retryable errors stop the loop immediately.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	backoff := p.InitialBackoff
	classify := p.Classify
	if classify == nil {
		classify = func(error) Category { return Permanent }
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{
				Err:      &Error{Err: err, Category: Permanent, Attempts: attempt},
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		value, err := fn(ctx)
		if err == nil {
			return Result[T]{
				Value:    value,
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}
		lastErr = err

		cat := classify(err)
		if cat != Transient {
			return Result[T]{
				Err:      &Error{Err: err, Category: cat, Attempts: attempt + 1},
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}

		// Don't sleep after the last attempt
		if attempt < p.MaxAttempts-1 {
			sleep := withJitter(backoff, p.Jitter)
			if p.Hint != nil {
				if hint := p.Hint(err); hint > sleep {
					sleep = hint
				}
			}
			select {
			case <-ctx.Done():
				return Result[T]{
					Err:      &Error{Err: ctx.Err(), Category: Permanent, Attempts: attempt + 1},
					Attempts: attempt + 1,
					Duration: time.Since(start),
				}
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * p.BackoffFactor)
			if backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	}

	return Result[T]{
		Err:      &Error{Err: lastErr, Category: Transient, Attempts: p.MaxAttempts, Exhausted: true},
		Attempts: p.MaxAttempts,
		Duration: time.Since(start),
	}
}

// withJitter returns the backoff duration with jitter applied.
func withJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}

	// base +/- (base * jitter * random)
	amount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + amount)
}

// Final returns the error from the last attempt, stripped of retry
// bookkeeping, so callers can match on the original typed error.
func Final(err error) error {
	var re *Error
	if errors.As(err, &re) {
		return re.Err
	}
	return err
}
