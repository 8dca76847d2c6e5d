package checkpoint

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot of session state.
// It contains all information needed to resume execution mid-run.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`

	// Checksum is the BLAKE3 digest of State, hex encoded.
	// Verify uses it to detect truncated or tampered snapshots.
	Checksum string `json:"checksum"`

	// Execution context
	Attempt    int    `json:"attempt"`
	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// New creates a new checkpoint with the given parameters.
// State must already be JSON-serialized; its checksum is computed here.
func New(sessionID, nodeID string, sequence int, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		SessionID: sessionID,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
		Checksum:  Sum(state),
		Attempt:   1,
	}
}

// Sum returns the hex-encoded BLAKE3 digest of data.
func Sum(data []byte) string {
	digest := blake3.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
// It does not verify the state checksum; call Verify separately.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Verify recomputes the state checksum and compares it against the
// recorded one. A mismatch means the snapshot was corrupted in storage.
func (c *Checkpoint) Verify() error {
	if got := Sum(c.State); got != c.Checksum {
		return fmt.Errorf("checkpoint %s/%s: %w", c.SessionID, c.NodeID, ErrChecksum)
	}
	return nil
}

// WithAttempt sets the attempt number for retry tracking.
func (c *Checkpoint) WithAttempt(attempt int) *Checkpoint {
	c.Attempt = attempt
	return c
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}
