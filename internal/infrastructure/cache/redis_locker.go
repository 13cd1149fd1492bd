package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
)

var _ ports.Locker = (*RedisLocker)(nil)

// releaseScript borra la llave solo si el valor sigue siendo el del dueño.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker locks consultivos compartidos entre réplicas (SET NX PX).
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLocker crea el locker sobre un cliente existente.
func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	return &RedisLocker{client: client, keyPrefix: prefixOrDefault(keyPrefix) + "lock:"}
}

// Acquire toma el lock con TTL. ErrLockHeld si otro lo tiene.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.Lock, error) {
	full := l.keyPrefix + key
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("adquirir lock %s: %w", key, err)
	}
	if !ok {
		return nil, ports.ErrLockHeld
	}
	return &redisLock{client: l.client, key: full, owner: owner}, nil
}

type redisLock struct {
	client *redis.Client
	key    string
	owner  string
}

func (k *redisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, k.client, []string{k.key}, k.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("liberar lock %s: %w", k.key, err)
	}
	return nil
}
