package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tikusl4ju/myinvoice-sync/pkg/config"
)

// DefaultKeyPrefix prefijo de todas las llaves si no se configura otro.
const DefaultKeyPrefix = "myinvois:"

// NewRedisClient abre el cliente y verifica la conexión.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("conectar a Redis: %w", err)
	}
	return client, nil
}

func prefixOrDefault(p string) string {
	if p == "" {
		return DefaultKeyPrefix
	}
	return p
}
