package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"road-monitor/internal/config"
	"road-monitor/internal/store"
)

func newRedisFixture(t *testing.T) (*miniredis.Miniredis, *store.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, store.NewRedisStoreFromClient(client)
}

func TestValidateStaticKeys(t *testing.T) {
	cfg := &config.Config{
		ValidAPIKeys:        []string{"static-key", ""},
		AuthCacheTTLSeconds: 60,
	}
	a := NewAuthenticator(cfg, nil)

	ctx := context.Background()
	assert.True(t, a.Validate(ctx, "static-key"))
	assert.False(t, a.Validate(ctx, "unknown"))
	assert.False(t, a.Validate(ctx, ""))
}

func TestValidateFallsBackToRedis(t *testing.T) {
	mr, rs := newRedisFixture(t)
	require.NoError(t, mr.Set("agent:auth:edge-7", "user-7"))

	cfg := &config.Config{AuthCacheTTLSeconds: 60}
	a := NewAuthenticator(cfg, rs)

	ctx := context.Background()
	assert.True(t, a.Validate(ctx, "edge-7"))
	assert.False(t, a.Validate(ctx, "edge-8"))
}

func TestValidateCachesRedisHits(t *testing.T) {
	mr, rs := newRedisFixture(t)
	require.NoError(t, mr.Set("agent:auth:edge-7", "user-7"))

	cfg := &config.Config{AuthCacheTTLSeconds: 300}
	a := NewAuthenticator(cfg, rs)

	ctx := context.Background()
	require.True(t, a.Validate(ctx, "edge-7"))

	// Key revoked in redis, but the local cache still honours it until
	// the TTL runs out.
	mr.Del("agent:auth:edge-7")
	assert.True(t, a.Validate(ctx, "edge-7"))
}
