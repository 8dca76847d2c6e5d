// Package event provides session lifecycle notifications.
//
// The engine publishes events as a session moves through its state
// machine: superstep boundaries, node execution, tool dispatch,
// evaluator verdicts, checkpoint saves. Consumers subscribe through a
// Bus and receive events over a channel, typically to stream progress
// to a UI or to collect audit trails.
//
// Delivery is advisory: publishing never blocks the engine, so a slow
// subscriber sees dropped events rather than stalling a session.
package event

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Type identifies what happened.
type Type string

// Session lifecycle and execution event types.
const (
	TypeSessionCreated     Type = "session.created"
	TypeSessionResumed     Type = "session.resumed"
	TypeSessionReset       Type = "session.reset"
	TypeSessionEnded       Type = "session.ended"
	TypeSuperstepStarted   Type = "superstep.started"
	TypeSuperstepCompleted Type = "superstep.completed"
	TypeSuperstepFailed    Type = "superstep.failed"
	TypeNodeStarted        Type = "node.started"
	TypeNodeCompleted      Type = "node.completed"
	TypeToolDispatched     Type = "tool.dispatched"
	TypeToolCompleted      Type = "tool.completed"
	TypeEvaluationRecorded Type = "evaluation.recorded"
	TypeUserInputRequested Type = "user_input.requested"
	TypeCheckpointSaved    Type = "checkpoint.saved"
)

// Event is a single session notification. Events are immutable once
// published; IDs are ULIDs, so sorting by ID matches publish order.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	SessionID string         `json:"session_id"`
	Node      string         `json:"node,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates an event for a session with optional detail fields.
func New(t Type, sessionID string, fields map[string]any) Event {
	return Event{
		ID:        ulid.Make().String(),
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	}
}

// NewNode creates an event tied to a specific state machine node.
func NewNode(t Type, sessionID, node string, fields map[string]any) Event {
	evt := New(t, sessionID, fields)
	evt.Node = node
	return evt
}
