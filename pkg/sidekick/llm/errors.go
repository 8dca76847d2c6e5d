package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error is the unified interface for provider transport failures. Adapters
// return errors satisfying it so callers can make retry decisions without
// knowing which provider produced the failure.
type Error interface {
	error
	Provider() string
	StatusCode() int
	Retryable() bool
	RetryAfter() time.Duration // zero when the provider gave no hint
}

// transportBase carries the fields shared by all transport error kinds.
type transportBase struct {
	provider   string
	statusCode int
	message    string
	retryable  bool
	retryAfter time.Duration
	err        error
}

func (e *transportBase) Error() string {
	msg := strings.TrimSpace(e.message)
	if msg == "" && e.err != nil {
		msg = e.err.Error()
	}
	if msg == "" {
		msg = "request failed"
	}
	if e.statusCode > 0 {
		return fmt.Sprintf("%s error (status=%d): %s", e.provider, e.statusCode, msg)
	}
	return fmt.Sprintf("%s error: %s", e.provider, msg)
}

func (e *transportBase) Unwrap() error             { return e.err }
func (e *transportBase) Provider() string          { return e.provider }
func (e *transportBase) StatusCode() int           { return e.statusCode }
func (e *transportBase) Retryable() bool           { return e.retryable }
func (e *transportBase) RetryAfter() time.Duration { return e.retryAfter }

// Transport error kinds. Each is a distinct type so callers can use
// errors.As for targeted handling; all satisfy Error.
type (
	// InvalidRequestError covers malformed requests (400, 422).
	InvalidRequestError struct{ transportBase }
	// AuthenticationError covers bad or missing credentials (401, 403).
	AuthenticationError struct{ transportBase }
	// RateLimitError covers throttling (429); RetryAfter carries the
	// provider's hint when present.
	RateLimitError struct{ transportBase }
	// ContextLengthError covers prompts exceeding the model window (413,
	// or message-classified 400s).
	ContextLengthError struct{ transportBase }
	// ContentFilterError covers provider safety refusals.
	ContentFilterError struct{ transportBase }
	// ServerError covers provider-side failures (5xx).
	ServerError struct{ transportBase }
	// TimeoutError covers request timeouts (408 or transport-level).
	TimeoutError struct{ transportBase }
	// ConnectionError covers failures before any HTTP status was
	// received (DNS, dial, TLS, canceled context).
	ConnectionError struct{ transportBase }
	// UnknownError covers statuses with no specific classification.
	UnknownError struct{ transportBase }
)

// ErrorFromStatus classifies an HTTP failure status into a typed transport
// error. Ambiguous statuses (400, 422) are refined by message sniffing
// because providers tunnel domain failures through them.
func ErrorFromStatus(provider string, statusCode int, message string, retryAfter time.Duration) error {
	base := transportBase{
		provider:   strings.TrimSpace(provider),
		statusCode: statusCode,
		message:    message,
		retryAfter: retryAfter,
	}
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		base.retryable = false
		if err := classifyByMessage(base); err != nil {
			return err
		}
		return &InvalidRequestError{base}
	case http.StatusUnauthorized, http.StatusForbidden:
		base.retryable = false
		return &AuthenticationError{base}
	case http.StatusRequestTimeout:
		base.retryable = true
		return &TimeoutError{base}
	case http.StatusRequestEntityTooLarge:
		base.retryable = false
		return &ContextLengthError{base}
	case http.StatusTooManyRequests:
		base.retryable = true
		return &RateLimitError{base}
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		base.retryable = true
		return &ServerError{base}
	default:
		base.retryable = statusCode >= 500
		return &UnknownError{base}
	}
}

// classifyByMessage refines ambiguous statuses using provider message text.
func classifyByMessage(base transportBase) error {
	lower := strings.ToLower(base.message)
	switch {
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &ContentFilterError{base}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens") ||
		strings.Contains(lower, "maximum context"):
		return &ContextLengthError{base}
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid key") ||
		strings.Contains(lower, "api key"):
		return &AuthenticationError{base}
	}
	return nil
}

// NewConnectionError wraps a failure that happened before any HTTP status
// was received. Retryable unless the context was canceled.
func NewConnectionError(provider string, err error) error {
	return &ConnectionError{transportBase{
		provider:  strings.TrimSpace(provider),
		err:       err,
		retryable: !errors.Is(err, context.Canceled),
	}}
}

// NewTimeoutError wraps a transport-level timeout (deadline exceeded with
// no response). Retryable: the provider may simply have been slow.
func NewTimeoutError(provider string, err error) error {
	return &TimeoutError{transportBase{
		provider:  strings.TrimSpace(provider),
		err:       err,
		retryable: true,
	}}
}

// ParseRetryAfter parses a Retry-After header value: integer seconds or an
// HTTP-date. Returns zero when absent or unparseable.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsRetryable reports whether err is a transport error the caller may
// safely retry. Validation errors and non-transport errors are never
// retryable.
func IsRetryable(err error) bool {
	var te Error
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}

// RetryAfterHint extracts the provider's retry-after hint, if any.
func RetryAfterHint(err error) time.Duration {
	var te Error
	if errors.As(err, &te) {
		return te.RetryAfter()
	}
	return 0
}

// ValidationError reports that a structured completion's output could not
// be parsed and validated into the expected shape. It is terminal for the
// attempt: the result was produced but is unusable, so retrying with the
// same prompt is the caller's policy decision, not the transport layer's.
type ValidationError struct {
	Provider string
	Schema   string
	Raw      string // offending provider output, possibly truncated
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s structured output failed validation against %q: %v",
		e.Provider, e.Schema, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError, truncating the retained raw
// output to keep error values bounded.
func NewValidationError(provider, schema, raw string, err error) *ValidationError {
	const keep = 512
	if len(raw) > keep {
		raw = raw[:keep] + "..."
	}
	return &ValidationError{Provider: provider, Schema: schema, Raw: raw, Err: err}
}
