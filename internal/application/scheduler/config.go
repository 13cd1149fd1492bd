package scheduler

import (
	"time"

	"github.com/tikusl4ju/myinvoice-sync/pkg/config"
)

// Nombres de pasada; también son la clave del lock ("pass:<nombre>").
const (
	PassSync  = "sync"
	PassRetry = "retry"
	PassQueue = "queue"
)

// Passes orden en que corre cada disparo del runner.
var Passes = []string{PassSync, PassRetry, PassQueue}

// Config parámetros de las pasadas.
type Config struct {
	Interval       time.Duration
	SyncBatch      int
	RetryBatch     int
	QueueBatch     int
	LockTTL        time.Duration
	RetryCap       int
	MaxBackoff     time.Duration
	InterCallDelay time.Duration
	Location       *time.Location // zona de las fechas de los tokens de cola
}

// DefaultConfig valores del cron de 10 minutos: lotes de 5/5/20, tope de 3 reintentos.
func DefaultConfig() Config {
	return Config{
		Interval:       10 * time.Minute,
		SyncBatch:      5,
		RetryBatch:     5,
		QueueBatch:     20,
		LockTTL:        8 * time.Minute,
		RetryCap:       3,
		MaxBackoff:     8 * time.Second,
		InterCallDelay: time.Second,
		Location:       time.UTC,
	}
}

// NewConfig traduce la configuración del proceso.
func NewConfig(cfg *config.Config) Config {
	s := cfg.Scheduler
	return Config{
		Interval:       s.Interval,
		SyncBatch:      s.SyncBatch,
		RetryBatch:     s.RetryBatch,
		QueueBatch:     s.QueueBatch,
		LockTTL:        s.LockTTL,
		RetryCap:       s.RetryCap,
		MaxBackoff:     s.MaxBackoff,
		InterCallDelay: s.InterCallDelay,
		Location:       cfg.App.Location(),
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.SyncBatch <= 0 {
		c.SyncBatch = d.SyncBatch
	}
	if c.RetryBatch <= 0 {
		c.RetryBatch = d.RetryBatch
	}
	if c.QueueBatch <= 0 {
		c.QueueBatch = d.QueueBatch
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	if c.RetryCap <= 0 {
		c.RetryCap = d.RetryCap
	}
	if c.MaxBackoff < 0 {
		c.MaxBackoff = 0
	}
	if c.InterCallDelay < 0 {
		c.InterCallDelay = 0
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Backoff espera antes del reintento número attempt (1 = primero): 2^(attempt-1) s, con tope.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			break
		}
	}
	if d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}
