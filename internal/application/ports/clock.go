package ports

import (
	"context"
	"time"
)

// Clock abstrae la hora actual para poder fijarla en tests.
type Clock interface {
	Now() time.Time
}

// Sleeper abstrae las esperas entre llamadas (backoff, pausas de rate limit).
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock reloj real.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RealSleeper espera de verdad y corta si el contexto se cancela.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
