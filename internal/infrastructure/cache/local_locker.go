package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
)

var _ ports.Locker = (*LocalLocker)(nil)

// LocalLocker locks en memoria para despliegues de una sola réplica (sin Redis).
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

type localEntry struct {
	owner   string
	expires time.Time
}

// NewLocalLocker crea el locker en memoria.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localEntry{}, now: time.Now}
}

// Acquire toma el lock si está libre o vencido.
func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (ports.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ports.ErrLockHeld
	}
	owner := uuid.NewString()
	l.held[key] = localEntry{owner: owner, expires: now.Add(ttl)}
	return &localLock{parent: l, key: key, owner: owner}, nil
}

type localLock struct {
	parent *LocalLocker
	key    string
	owner  string
}

func (k *localLock) Release(_ context.Context) error {
	k.parent.mu.Lock()
	defer k.parent.mu.Unlock()
	if e, ok := k.parent.held[k.key]; ok && e.owner == k.owner {
		delete(k.parent.held, k.key)
	}
	return nil
}
