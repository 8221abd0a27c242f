package storage

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:8.4-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cont.Terminate(context.Background())
	})

	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return host + ":" + port.Port()
}

func TestRedisKV(t *testing.T) {
	addr := startRedis(t)

	kv := NewRedisKV(RedisOptions{Addr: addr, Profile: "kiosk"})
	t.Cleanup(func() { _ = kv.Close() })

	require.NoError(t, kv.Ping(context.Background()))
	exerciseKV(t, kv)
}

func TestRedisKV_ProfilePrefix(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	kv := NewRedisKV(RedisOptions{Addr: addr, Profile: "store-42"})
	t.Cleanup(func() { _ = kv.Close() })
	require.NoError(t, kv.SetItem(ctx, KeySession, "tokens"))

	raw := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = raw.Close() })

	val, err := raw.Get(ctx, "oflow:store-42:session").Result()
	require.NoError(t, err)
	assert.Equal(t, "tokens", val)

	other := NewRedisKV(RedisOptions{Addr: addr, Profile: "store-43"})
	t.Cleanup(func() { _ = other.Close() })
	_, ok, err := other.GetItem(ctx, KeySession)
	require.NoError(t, err)
	assert.False(t, ok, "profiles must not see each other's keys")
}
