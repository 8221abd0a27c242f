// Package storage provides the durable key/value backends the client keeps
// its identity, session and transient OAuth artifacts in.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/config"
)

// Well-known keys
const (
	KeyIdentity     = "oflow-auth-storage"
	KeySession      = "session"
	KeyOAuthPending = "line_oauth_pending"
)

// KV is an asynchronous string key/value store.
//
// Implementations must be safe for concurrent use. A missing key is reported
// through the boolean result, never as an error.
type KV interface {
	// GetItem returns the value stored at key.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value at key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

// Open builds the backend selected by cfg.
func Open(cfg config.StorageConfig) (KV, error) {
	switch cfg.Backend {
	case config.StorageFile, "":
		return NewFileKV(cfg.Dir)
	case config.StorageMemory:
		return NewMemoryKV(), nil
	case config.StorageRedis:
		return NewRedisKV(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Profile:  cfg.Profile,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
