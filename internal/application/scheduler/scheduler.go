// Package scheduler corre las pasadas periódicas sobre el libro de envíos:
// sincronización de estados, reintentos y envíos diferidos por token de cola.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

// Lifecycle operaciones del ciclo de vida que usan las pasadas.
type Lifecycle interface {
	SyncStatus(ctx context.Context, remoteID string) (*entity.InvoiceRecord, error)
	Resubmit(ctx context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error)
	SubmitQueued(ctx context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error)
	RefreshToken(ctx context.Context) error
}

// Switch interruptor administrativo de las pasadas.
type Switch interface {
	SchedulerEnabled(ctx context.Context) (bool, error)
}

// Deps colaboradores del planificador. Metrics, Clock, Sleeper y Log son opcionales.
type Deps struct {
	Ledger    repository.LedgerRepository
	Lifecycle Lifecycle
	Switch    Switch
	Locker    ports.Locker
	Metrics   ports.Metrics
	Clock     ports.Clock
	Sleeper   ports.Sleeper
	Log       *logger.Logger
}

// PassResult resumen de una pasada.
type PassResult struct {
	Pass      string        `json:"pass"`
	Selected  int           `json:"selected"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Exhausted int64         `json:"exhausted,omitempty"`
	NotRun    string        `json:"not_run,omitempty"` // "disabled" o "locked"
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Scheduler ejecuta las pasadas. Cada pasada toma su propio lock y procesa
// las filas una por una; el fallo de un documento no corta el lote.
type Scheduler struct {
	ledger    repository.LedgerRepository
	lifecycle Lifecycle
	sw        Switch
	locker    ports.Locker
	metrics   ports.Metrics
	clock     ports.Clock
	sleeper   ports.Sleeper
	cfg       Config
	log       *logger.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New construye el planificador.
func New(d Deps, cfg Config) *Scheduler {
	s := &Scheduler{
		ledger:    d.Ledger,
		lifecycle: d.Lifecycle,
		sw:        d.Switch,
		locker:    d.Locker,
		metrics:   d.Metrics,
		clock:     d.Clock,
		sleeper:   d.Sleeper,
		cfg:       cfg.withDefaults(),
		log:       d.Log,
		lastRun:   map[string]time.Time{},
	}
	if s.metrics == nil {
		s.metrics = ports.NopMetrics{}
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	if s.sleeper == nil {
		s.sleeper = ports.RealSleeper{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.Component("scheduler")
	return s
}

// Config devuelve la configuración efectiva.
func (s *Scheduler) Config() Config { return s.cfg }

// LastRuns instante de la última ejecución completa de cada pasada.
func (s *Scheduler) LastRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		out[k] = v
	}
	return out
}

// ── Runner ────────────────────────────────────────────────────────────────────

// Start lanza el ciclo periódico. Cada disparo corre sync, retry y queue en orden.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info().Dur("interval", s.cfg.Interval).Msg("planificador iniciado")
	return nil
}

// Stop detiene el ciclo y espera a que termine la pasada en curso o venza ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("planificador detenido")
		return nil
	case <-ctx.Done():
		s.log.Warn().Msg("el planificador no se detuvo a tiempo")
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunAll(ctx)
		}
	}
}

// RunAll corre las tres pasadas en orden. Los errores quedan en el log.
func (s *Scheduler) RunAll(ctx context.Context) []PassResult {
	out := make([]PassResult, 0, len(Passes))
	for _, name := range Passes {
		if ctx.Err() != nil {
			break
		}
		res, err := s.RunPass(ctx, name)
		if err != nil {
			s.log.Error().Err(err).Str("pass", name).Msg("pasada fallida")
		}
		out = append(out, res)
	}
	return out
}

// RunPass corre una pasada: respeta el interruptor, toma el lock "pass:<nombre>"
// y lo libera siempre, incluso con el lote vacío.
func (s *Scheduler) RunPass(ctx context.Context, name string) (PassResult, error) {
	var fn func(context.Context, *PassResult) error
	switch name {
	case PassSync:
		fn = s.syncPass
	case PassRetry:
		fn = s.retryPass
	case PassQueue:
		fn = s.queuePass
	default:
		return PassResult{Pass: name}, fmt.Errorf("%w: %q", ErrUnknownPass, name)
	}
	res := PassResult{Pass: name}

	// ── 1. Interruptor ────────────────────────────────────────────────────────
	enabled, err := s.sw.SchedulerEnabled(ctx)
	if err != nil {
		return res, err
	}
	if !enabled {
		res.NotRun = "disabled"
		s.metrics.PassSkipped(name, res.NotRun)
		s.log.Debug().Str("pass", name).Msg("pasada omitida: planificador deshabilitado")
		return res, nil
	}

	// ── 2. Lock de la pasada ──────────────────────────────────────────────────
	lock, err := s.locker.Acquire(ctx, "pass:"+name, s.cfg.LockTTL)
	if errors.Is(err, ports.ErrLockHeld) {
		res.NotRun = "locked"
		s.metrics.PassSkipped(name, res.NotRun)
		s.log.Info().Str("pass", name).Msg("pasada omitida: lock tomado")
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("lock de pasada %s: %w", name, err)
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			s.log.Warn().Err(rerr).Str("pass", name).Msg("no se pudo liberar el lock de la pasada")
		}
	}()

	// ── 3. Ejecutar ───────────────────────────────────────────────────────────
	start := time.Now()
	err = fn(ctx, &res)
	res.Elapsed = time.Since(start)
	s.metrics.PassFinished(name, res.Processed, res.Elapsed)

	s.mu.Lock()
	s.lastRun[name] = s.clock.Now()
	s.mu.Unlock()

	if res.Selected > 0 {
		s.log.Info().
			Str("pass", name).
			Int("selected", res.Selected).
			Int("processed", res.Processed).
			Int("skipped", res.Skipped).
			Int("errors", res.Errors).
			Int64("exhausted", res.Exhausted).
			Dur("elapsed", res.Elapsed).
			Msg("pasada terminada")
	}
	return res, err
}

// refresh fuerza un token nuevo. Un fallo no detiene la pasada: cada llamada
// volverá a intentar obtener token.
func (s *Scheduler) refresh(ctx context.Context, pass string) {
	if err := s.lifecycle.RefreshToken(ctx); err != nil {
		s.log.Warn().Err(err).Str("pass", pass).Msg("no se pudo renovar el token")
	}
}

// ── Sync ──────────────────────────────────────────────────────────────────────

// syncPass consulta el estado de los submitted acusados con 202, más antiguos primero.
func (s *Scheduler) syncPass(ctx context.Context, res *PassResult) error {
	rows, err := s.ledger.ListForSync(ctx, s.cfg.SyncBatch)
	if err != nil {
		return fmt.Errorf("sync: listar filas: %w", err)
	}
	res.Selected = len(rows)
	if len(rows) == 0 {
		return nil
	}
	s.refresh(ctx, PassSync)

	for _, row := range rows {
		if err := s.sleeper.Sleep(ctx, s.cfg.InterCallDelay); err != nil {
			return err
		}
		if _, err := s.lifecycle.SyncStatus(ctx, row.RemoteID); err != nil {
			res.Errors++
			s.log.Warn().Err(err).Str("document_no", row.DocumentNo).Str("remote_id", row.RemoteID).Msg("sync: fila no sincronizada")
			continue
		}
		res.Processed++
	}
	return nil
}

// ── Retry ─────────────────────────────────────────────────────────────────────

// retryPass reenvía las filas en retry bajo el tope. El contador se incrementa
// antes de reenviar para que una caída a mitad de pasada no repita el intento.
// Al final, las filas que alcanzaron el tope pasan a failed.
func (s *Scheduler) retryPass(ctx context.Context, res *PassResult) error {
	rows, err := s.ledger.ListForRetry(ctx, s.cfg.RetryCap, s.cfg.RetryBatch)
	if err != nil {
		return fmt.Errorf("retry: listar filas: %w", err)
	}
	res.Selected = len(rows)
	if len(rows) > 0 {
		s.refresh(ctx, PassRetry)
	}

	for _, row := range rows {
		attempt, err := s.ledger.IncrementRetry(ctx, row.DocumentNo)
		if errors.Is(err, domain.ErrStatusChanged) {
			res.Skipped++
			s.log.Info().Str("document_no", row.DocumentNo).Msg("retry: la fila ya salió de retry")
			continue
		}
		if err != nil {
			res.Errors++
			s.log.Error().Err(err).Str("document_no", row.DocumentNo).Msg("retry: no se pudo registrar el intento")
			continue
		}
		if err := s.sleeper.Sleep(ctx, s.cfg.Backoff(attempt)); err != nil {
			return err
		}
		row.RetryCount = attempt
		out, err := s.lifecycle.Resubmit(ctx, row)
		if errors.Is(err, domain.ErrStatusChanged) || errors.Is(err, domain.ErrSubmissionInFlight) {
			res.Skipped++
			s.log.Info().Err(err).Str("document_no", row.DocumentNo).Msg("retry: otro envío se adelantó")
			continue
		}
		if err != nil {
			res.Errors++
			s.log.Warn().Err(err).Str("document_no", row.DocumentNo).Int("retry_count", attempt).Msg("retry: reenvío fallido")
			continue
		}
		res.Processed++
		s.log.Info().Str("document_no", row.DocumentNo).Int("attempt", attempt).Str("status", out.Status).Msg("retry: reenviado")
	}

	n, err := s.ledger.FailExhausted(ctx, s.cfg.RetryCap)
	if err != nil {
		return fmt.Errorf("retry: marcar agotados: %w", err)
	}
	res.Exhausted = n
	if n > 0 {
		s.log.Warn().Int64("rows", n).Int("retry_cap", s.cfg.RetryCap).Msg("retry: filas agotadas pasan a failed")
	}
	return nil
}
