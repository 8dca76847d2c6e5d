package sidekick

import (
	"errors"
	"fmt"
)

// Sentinel errors for session management.
var (
	// ErrSessionNotFound indicates the manager holds no session with the
	// given identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed indicates the session was torn down and cannot
	// run further supersteps.
	ErrSessionClosed = errors.New("session closed")

	// ErrManagerClosed indicates the manager was closed and cannot
	// create or serve sessions.
	ErrManagerClosed = errors.New("manager closed")
)

// StateError reports a persisted session snapshot that exists but cannot
// be trusted: the envelope failed to decode, the checksum did not match,
// or the format version is unknown. The recommended recovery is a fresh
// session rather than fabricating state.
type StateError struct {
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("session %s: state unusable: %v", e.SessionID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StateError) Unwrap() error {
	return e.Err
}
