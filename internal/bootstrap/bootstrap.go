// Package bootstrap arma el grafo de objetos que comparten el servidor y la CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/ports"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/scheduler"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/cache"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/metrics"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
	infrapdf "github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/pdf"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/postgres"
	"github.com/tikusl4ju/myinvoice-sync/pkg/config"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

// App dependencias ya construidas. Close libera pool y Redis.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Pool         *pgxpool.Pool
	Redis        *redis.Client // nil sin Redis
	Metrics      *metrics.Recorder
	Ledger       *postgres.LedgerRepo
	Orders       *postgres.OrderRepo
	Transport    myinvois.Transport
	Locker       ports.Locker
	Settings     *billing.RuntimeSettings
	Lifecycle    *billing.Lifecycle
	Certificates *billing.CertificateService
	Receipts     *billing.ReceiptUseCase
	Scheduler    *scheduler.Scheduler
}

// NewLogger crea el logger del proceso según la configuración.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
}

// New conecta PostgreSQL (y Redis si está configurado) y arma los casos de uso.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.NewRecorder()}

	// ── 1. Almacenamiento ─────────────────────────────────────────────────────
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	a.Pool = pool
	a.Ledger = postgres.NewLedgerRepository(pool)
	a.Orders = postgres.NewOrderRepository(pool)
	certRepo := postgres.NewCertificateRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)

	// ── 2. Locks y caché de token ─────────────────────────────────────────────
	var tokenCache myinvois.TokenCache = myinvois.NewMemoryTokenCache()
	a.Locker = cache.NewLocalLocker()
	if cfg.Redis.Enabled() {
		rc, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rc
		a.Locker = cache.NewRedisLocker(rc, cfg.Redis.KeyPrefix)
		tokenCache = cache.NewRedisTokenCache(rc, cfg.Redis.KeyPrefix)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("locks y token en Redis")
	} else {
		log.Warn().Msg("sin Redis: locks y token en memoria (una sola réplica)")
	}

	// ── 3. Transporte ─────────────────────────────────────────────────────────
	secrets := make([]string, 0, 2)
	for _, s := range []string{cfg.MyInvois.ClientSecret1, cfg.MyInvois.ClientSecret2} {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	a.Transport = myinvois.NewHTTPClient(myinvois.ClientConfig{
		APIHost:       cfg.MyInvois.APIHost,
		ClientID:      cfg.MyInvois.ClientID,
		ClientSecrets: secrets,
		Timeout:       cfg.MyInvois.Timeout,
		RatePerSecond: cfg.MyInvois.RatePerSecond,
		RateBurst:     cfg.MyInvois.RateBurst,
	}, tokenCache)

	// ── 4. Casos de uso ───────────────────────────────────────────────────────
	clock := ports.SystemClock{}
	lcCfg := billing.NewLifecycleConfig(cfg)
	a.Settings = billing.NewRuntimeSettings(settingsRepo, lcCfg.InitialUBLVersion, cfg.Scheduler.Enabled)
	a.Lifecycle = billing.NewLifecycle(billing.Deps{
		Ledger:    a.Ledger,
		Certs:     certRepo,
		Orders:    a.Orders,
		Settings:  a.Settings,
		Transport: a.Transport,
		Builder:   myinvois.NewUBLBuilder(),
		Signer:    newSigner(clock),
		Locker:    a.Locker,
		Metrics:   a.Metrics,
		Clock:     clock,
		Log:       log,
	}, lcCfg)
	a.Certificates = billing.NewCertificateService(certRepo, a.Settings, clock, log)
	a.Receipts = billing.NewReceiptUseCase(a.Ledger, lcCfg, infrapdf.NewReceiptGenerator())

	// ── 5. Planificador ───────────────────────────────────────────────────────
	a.Scheduler = scheduler.New(scheduler.Deps{
		Ledger:    a.Ledger,
		Lifecycle: a.Lifecycle,
		Switch:    a.Settings,
		Locker:    a.Locker,
		Metrics:   a.Metrics,
		Clock:     clock,
		Log:       log,
	}, scheduler.NewConfig(cfg))

	return a, nil
}

// Close libera las conexiones abiertas.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("cerrar Redis")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// newSigner ata SigningTime al mismo reloj que usa el ciclo de vida.
func newSigner(clock ports.Clock) *signer.Service {
	return signer.NewService().WithClock(clock.Now)
}
