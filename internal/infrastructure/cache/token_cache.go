package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
)

var _ myinvois.TokenCache = (*RedisTokenCache)(nil)

// RedisTokenCache comparte el access token de LHDN entre réplicas.
type RedisTokenCache struct {
	client *redis.Client
	key    string
}

// NewRedisTokenCache crea la caché sobre un cliente existente.
func NewRedisTokenCache(client *redis.Client, keyPrefix string) *RedisTokenCache {
	return &RedisTokenCache{client: client, key: prefixOrDefault(keyPrefix) + "access_token"}
}

func (c *RedisTokenCache) Get(ctx context.Context) (string, bool, error) {
	tok, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("leer token: %w", err)
	}
	return tok, tok != "", nil
}

func (c *RedisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("guardar token: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Delete(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("borrar token: %w", err)
	}
	return nil
}
