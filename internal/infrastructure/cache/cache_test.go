package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/cache"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// ──────────────────────────────────────────────────────────────────────────────
// RedisLocker
// ──────────────────────────────────────────────────────────────────────────────

func TestRedisLocker_SegundoAcquireFalla(t *testing.T) {
	_, client := newRedis(t)
	l := cache.NewRedisLocker(client, "t:")
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "pass:sync", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "pass:sync", time.Minute)
	assert.ErrorIs(t, err, ports.ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	lock2, err := l.Acquire(ctx, "pass:sync", time.Minute)
	require.NoError(t, err, "tras liberar debe poder tomarse de nuevo")
	require.NoError(t, lock2.Release(ctx))
}

func TestRedisLocker_VenceConTTL(t *testing.T) {
	mr, client := newRedis(t)
	l := cache.NewRedisLocker(client, "t:")
	ctx := context.Background()

	_, err := l.Acquire(ctx, "pass:retry", 8*time.Minute)
	require.NoError(t, err)
	mr.FastForward(9 * time.Minute)

	_, err = l.Acquire(ctx, "pass:retry", 8*time.Minute)
	assert.NoError(t, err, "un lock vencido no debe bloquear")
}

func TestRedisLocker_ReleaseNoBorraLockAjeno(t *testing.T) {
	mr, client := newRedis(t)
	l := cache.NewRedisLocker(client, "t:")
	ctx := context.Background()

	old, err := l.Acquire(ctx, "pass:queue", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = l.Acquire(ctx, "pass:queue", time.Minute)
	require.NoError(t, err)

	require.NoError(t, old.Release(ctx))
	assert.True(t, mr.Exists("t:lock:pass:queue"), "el dueño anterior no debe liberar el lock nuevo")
}

// ──────────────────────────────────────────────────────────────────────────────
// LocalLocker
// ──────────────────────────────────────────────────────────────────────────────

func TestLocalLocker_ExclusionYRelease(t *testing.T) {
	l := cache.NewLocalLocker()
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "doc:1001", time.Minute)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "doc:1001", time.Minute)
	assert.ErrorIs(t, err, ports.ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx), "liberar dos veces no es error")
	_, err = l.Acquire(ctx, "doc:1001", time.Minute)
	assert.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// RedisTokenCache
// ──────────────────────────────────────────────────────────────────────────────

func TestRedisTokenCache_GetSetDeleteYVencimiento(t *testing.T) {
	mr, client := newRedis(t)
	c := cache.NewRedisTokenCache(client, "")
	ctx := context.Background()

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "sin token al inicio")

	require.NoError(t, c.Set(ctx, "tok", time.Hour))
	tok, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
	assert.True(t, mr.Exists(cache.DefaultKeyPrefix+"access_token"))

	mr.FastForward(2 * time.Hour)
	_, ok, _ = c.Get(ctx)
	assert.False(t, ok, "el token vence con el TTL")

	require.NoError(t, c.Set(ctx, "tok2", time.Hour))
	require.NoError(t, c.Delete(ctx))
	_, ok, _ = c.Get(ctx)
	assert.False(t, ok)
}
