package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	require.NoError(t, r.NotifyCommitted(ctx, testRecord("app-2-0", "1-0-0")))
	require.NoError(t, r.NotifyCommitted(ctx, testRecord("app-1-0", "2-0-0")))
	require.NoError(t, r.NotifyCommitted(ctx, testRecord("app-1-0", "1-0-0")))

	updated := testRecord("app-1-0", "1-0-0")
	updated.Meta.ChunkOffsets = []int64{0, 64, 128}
	require.NoError(t, r.NotifyCommitted(ctx, updated))

	records, err := r.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "app-1-0/1-0-0", records[0].Key())
	assert.Equal(t, []int64{0, 64, 128}, records[0].Meta.ChunkOffsets)
	assert.Equal(t, "app-2-0/1-0-0", records[2].Key())

	require.NoError(t, r.Forget(ctx, "app-1-0"))
	records, err = r.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "app-2-0", records[0].ShuffleKey)

	assert.NoError(t, r.Close())
}
