package storage

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
)

// RedisOptions configures RedisKV.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Profile namespaces keys as oflow:<profile>:<key>.
	Profile string
}

// RedisKV stores values in Redis so several terminals can share one login.
type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisKV connects lazily; the first command dials.
func NewRedisKV(opts RedisOptions) *RedisKV {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newRedisKV(rdb, opts.Profile)
}

func newRedisKV(rdb *redis.Client, profile string) *RedisKV {
	if profile == "" {
		profile = "default"
	}
	return &RedisKV{
		rdb:    rdb,
		prefix: fmt.Sprintf("oflow:%s:", profile),
	}
}

// GetItem returns the value stored at key.
func (r *RedisKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	val, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errors.Wrap(errors.ErrCodeStoreReadFailed, fmt.Sprintf("get %s from redis", key), err)
	}
	return val, true, nil
}

// SetItem stores value at key without expiry.
func (r *RedisKV) SetItem(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := r.rdb.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, fmt.Sprintf("set %s in redis", key), err)
	}
	return nil
}

// RemoveItem deletes key.
func (r *RedisKV) RemoveItem(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, fmt.Sprintf("delete %s from redis", key), err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreBackend, "redis unreachable", err).
			WithSuggestion("Check storage.redis.addr or switch storage.backend to file")
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisKV) Close() error {
	return r.rdb.Close()
}
