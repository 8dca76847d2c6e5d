package event_test

import (
	"testing"
	"time"

	"github.com/randalmurphal/sidekick/pkg/sidekick/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew verifies event construction.
func TestNew(t *testing.T) {
	evt := event.New(event.TypeSuperstepStarted, "session-1", map[string]any{"step": 3})

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, event.TypeSuperstepStarted, evt.Type)
	assert.Equal(t, "session-1", evt.SessionID)
	assert.Empty(t, evt.Node)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, 3, evt.Fields["step"])
}

// TestNewNode verifies node-scoped event construction.
func TestNewNode(t *testing.T) {
	evt := event.NewNode(event.TypeNodeStarted, "session-1", "worker", nil)

	assert.Equal(t, event.TypeNodeStarted, evt.Type)
	assert.Equal(t, "worker", evt.Node)
	assert.Nil(t, evt.Fields)
}

// TestIDsSortInPublishOrder verifies the ULID ordering property.
func TestIDsSortInPublishOrder(t *testing.T) {
	var prev string
	for i := 0; i < 10; i++ {
		evt := event.New(event.TypeNodeCompleted, "session-1", nil)
		require.Len(t, evt.ID, 26)
		if prev != "" {
			assert.GreaterOrEqual(t, evt.ID, prev)
		}
		prev = evt.ID
		time.Sleep(time.Millisecond)
	}
}
