package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, SnapshotKey("server"), []byte("v1"), 0))
	got, err := c.Get(ctx, "snapshot:server")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "snapshot:a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "snapshot:b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "other", []byte("3"), 0))
	require.NoError(t, c.DeleteByPrefix(ctx, "snapshot:"))

	_, err := c.Get(ctx, "snapshot:a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "other")
	assert.NoError(t, err)
}

func TestMemoryClient_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)
	defer c.Close()

	ch, unsubscribe, err := c.Subscribe(ctx, "jobs.events")
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, "jobs.events", map[string]string{"action": "uploaded"}))
	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"action":"uploaded"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, c.Publish(ctx, "jobs.events", "after"))
}
