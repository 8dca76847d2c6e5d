// Package checkpoint provides persistent session snapshots for crash
// recovery and cross-process session resumption.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists checkpoints for later resumption.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a session at a specific node.
	// Overwrites if a checkpoint for (sessionID, nodeID) already exists.
	Save(ctx context.Context, sessionID, nodeID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if the checkpoint doesn't exist.
	Load(ctx context.Context, sessionID, nodeID string) ([]byte, error)

	// Latest retrieves the highest-sequence checkpoint for a session.
	// Returns ErrNotFound if the session has no checkpoints.
	Latest(ctx context.Context, sessionID string) ([]byte, error)

	// List returns all checkpoints for a session, ordered by sequence.
	// Returns an empty slice (not an error) if the session has none.
	List(ctx context.Context, sessionID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if the checkpoint doesn't exist.
	Delete(ctx context.Context, sessionID, nodeID string) error

	// DeleteSession removes all checkpoints for a session.
	// Returns nil if the session has no checkpoints.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	SessionID string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrChecksum indicates a stored snapshot failed integrity verification.
	ErrChecksum = errors.New("checkpoint checksum mismatch")
)
