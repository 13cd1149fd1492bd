package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld indica que otro proceso tiene el lock.
var ErrLockHeld = errors.New("lock ocupado por otro proceso")

// Lock es un lock adquirido. Release es idempotente y solo libera si sigue siendo el dueño.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker adquiere locks consultivos con TTL. Devuelve ErrLockHeld si ya está tomado.
// Implementaciones: Redis (varias réplicas) y en memoria (un solo proceso).
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
