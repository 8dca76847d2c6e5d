package llm

import (
	"context"
	"errors"

	"github.com/randalmurphal/sidekick/pkg/sidekick/retry"
)

// Categorize maps this package's errors to retry categories: retryable
// transport errors are Transient, validation failures are Escalatable,
// everything else is Permanent.
func Categorize(err error) retry.Category {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return retry.Escalatable
	}
	if IsRetryable(err) {
		return retry.Transient
	}
	return retry.Permanent
}

// retryingClient decorates a Client with a retry policy.
type retryingClient struct {
	inner  Client
	policy retry.Policy
}

// WithRetry wraps a client so transient transport failures are retried with
// backoff. Provider rate-limit hints extend the computed backoff. Validation
// errors are never retried: the attempt produced output, it just failed the
// schema, and re-asking with the identical prompt is the caller's decision.
func WithRetry(c Client, policy retry.Policy) Client {
	if policy.Classify == nil {
		policy.Classify = Categorize
	}
	if policy.Hint == nil {
		policy.Hint = RetryAfterHint
	}
	return &retryingClient{inner: c, policy: policy}
}

// Complete implements Client.
func (r *retryingClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	result := retry.Do(ctx, r.policy, func(ctx context.Context) (*CompletionResponse, error) {
		return r.inner.Complete(ctx, req)
	})
	if result.Err != nil {
		return nil, retry.Final(result.Err)
	}
	return result.Value, nil
}

// CompleteStructured implements Client.
func (r *retryingClient) CompleteStructured(ctx context.Context, req CompletionRequest, schema *Schema, out any) error {
	result := retry.Do(ctx, r.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.CompleteStructured(ctx, req, schema, out)
	})
	if result.Err != nil {
		return retry.Final(result.Err)
	}
	return nil
}
