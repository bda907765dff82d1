package storage

import (
	"context"
	"errors"

	"github.com/recapturedocs/recapturedocs/internal/cache"
)

// CacheBackend keeps snapshots in a cache.Client without expiry.
type CacheBackend struct {
	client cache.Client
}

// NewCacheBackend wraps client.
func NewCacheBackend(client cache.Client) *CacheBackend {
	return &CacheBackend{client: client}
}

func (b *CacheBackend) Save(ctx context.Context, name string, data []byte) error {
	return b.client.Set(ctx, cache.SnapshotKey(name), data, 0)
}

func (b *CacheBackend) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := b.client.Get(ctx, cache.SnapshotKey(name))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

func (b *CacheBackend) Close() error {
	return b.client.Close()
}
