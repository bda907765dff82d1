package storage

import (
	"context"
	"fmt"

	"github.com/recapturedocs/recapturedocs/internal/cache"
	"github.com/recapturedocs/recapturedocs/internal/config"
	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// Open builds the snapshot backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *observability.Logger) (domain.SnapshotBackend, error) {
	var (
		backend domain.SnapshotBackend
		err     error
	)
	switch cfg.Driver {
	case "", "file":
		backend, err = NewFileBackend(cfg.File.Dir)
	case "sqlite":
		backend, err = OpenSQLite(ctx, cfg.SQLite)
	case "postgres":
		backend, err = OpenPostgres(ctx, cfg.Postgres)
	case "redis":
		var client *cache.RedisClient
		client, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		})
		if err == nil {
			backend = NewCacheBackend(client)
		}
	case "memory":
		backend = NewCacheBackend(cache.NewMemoryClient(0))
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown storage driver %q", cfg.Driver), nil)
	}
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("open %s storage", cfg.Driver), err)
	}

	logger.Info().
		Str("driver", cfg.Driver).
		Str("snapshot", cfg.SnapshotName).
		Msg("Snapshot backend ready")
	return backend, nil
}
