package checkpoint_test

import (
	"context"
	"testing"

	"github.com/randalmurphal/sidekick/pkg/sidekick/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Len(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Save(ctx, "session-1", "worker", []byte("a")))
	require.NoError(t, store.Save(ctx, "session-1", "tools", []byte("b")))
	require.NoError(t, store.Save(ctx, "session-2", "worker", []byte("c")))
	assert.Equal(t, 3, store.Len())

	require.NoError(t, store.DeleteSession(ctx, "session-1"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
