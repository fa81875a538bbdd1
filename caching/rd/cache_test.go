package rd_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/apex-wang/AUIKit/caching/rd"
	"github.com/apex-wang/AUIKit/tlsconfig"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, cfg rd.Config) (*rd.ChangeCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return rd.NewChangeCache(client, cfg), server
}

func TestChangeCacheDedup(t *testing.T) {
	cache, server := newCache(t, rd.Config{Prefix: "test"})
	ctx := t.Context()

	changed, err := cache.CheckAndUpdate(ctx, "room1", "song", `[{"songCode":"1"}]`)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = cache.CheckAndUpdate(ctx, "room1", "song", `[{"songCode":"1"}]`)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = cache.CheckAndUpdate(ctx, "room1", "song", `[]`)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, "[]", server.HGet("test:room1", "song"))
}

func TestChangeCacheClear(t *testing.T) {
	cache, server := newCache(t, rd.Config{})
	ctx := t.Context()

	_, err := cache.CheckAndUpdate(ctx, "room1", "song", "[]")
	require.NoError(t, err)
	require.True(t, server.Exists(cache.Key("room1")))

	require.NoError(t, cache.Clear(ctx, "room1"))
	assert.False(t, server.Exists(cache.Key("room1")))

	changed, err := cache.CheckAndUpdate(ctx, "room1", "song", "[]")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestChangeCacheTTL(t *testing.T) {
	cache, server := newCache(t, rd.Config{TTL: time.Minute})
	ctx := t.Context()

	_, err := cache.CheckAndUpdate(ctx, "room1", "song", "[]")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, server.TTL(cache.Key("room1")))

	server.FastForward(2 * time.Minute)
	changed, err := cache.CheckAndUpdate(ctx, "room1", "song", "[]")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestChangeCacheBackendError(t *testing.T) {
	cache, server := newCache(t, rd.Config{})
	server.Close()

	_, err := cache.CheckAndUpdate(t.Context(), "room1", "song", "[]")
	assert.Error(t, err)
}

func TestNewClientInMemory(t *testing.T) {
	client, err := rd.NewClient(rd.Config{InMemory: true})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(t.Context()).Err())
}

func TestConfigOptionsRejectsHalfKeyPair(t *testing.T) {
	_, err := rd.Config{TLS: tlsconfig.Config{CertFile: "client.pem"}}.Options()
	assert.Error(t, err)

	opts, err := rd.Config{Addr: "cache:6379", PoolSize: 4}.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Nil(t, opts.TLSConfig)
}
