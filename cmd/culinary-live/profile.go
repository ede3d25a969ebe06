package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/redilah/CulinaryAI/pkg/config"
	"github.com/redilah/CulinaryAI/runtime/logger"
	"github.com/redilah/CulinaryAI/runtime/statestore"
)

// openProfileStore builds the store for the configured backend. The returned
// close func releases backend connections and is never nil.
func openProfileStore(ctx context.Context, cfg config.ProfileConfig) (statestore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.ProfileBackendMemory:
		return statestore.NewMemoryStore(), noop, nil

	case config.ProfileBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts := []statestore.RedisOption{statestore.WithTTL(cfg.Redis.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, statestore.WithPrefix(cfg.Redis.Prefix))
		}
		store := statestore.NewRedisStore(client, opts...)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		logger.Debug("Using redis profile store", "addr", cfg.Redis.Addr)
		return store, client.Close, nil

	case config.ProfileBackendFile, "":
		path := cfg.File.Path
		if path == "" {
			path = statestore.DefaultProfilePath()
		}
		logger.Debug("Using file profile store", "path", path)
		return statestore.NewFileStore(path), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown profile backend %q", cfg.Backend)
	}
}
