package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tikusl4ju/myinvoice-sync/internal/bootstrap"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/postgres"
	httpRouter "github.com/tikusl4ju/myinvoice-sync/internal/interfaces/http"
	"github.com/tikusl4ju/myinvoice-sync/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := bootstrap.NewLogger(cfg)
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("api_host", cfg.MyInvois.APIHost).
		Msg("iniciando aplicación")

	// Migraciones antes de aceptar tráfico.
	mg, err := postgres.NewMigrator(cfg.DB.ConnectionString(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("preparar migraciones")
	}
	if err := mg.Up(); err != nil {
		log.Fatal().Err(err).Msg("aplicar migraciones")
	}
	_ = mg.Close()

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("armar dependencias")
	}
	defer app.Close()

	server := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 90, // un envío puede esperar al API de LHDN
		IdleTimeout:  time.Second * 60,
	})
	server.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	server.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "MyInvoice Sync API",
	}))

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(server, httpRouter.RouterDeps{
		Lifecycle:    app.Lifecycle,
		Certificates: app.Certificates,
		Settings:     app.Settings,
		Receipts:     app.Receipts,
		Orders:       app.Orders,
		Scheduler:    app.Scheduler,
		Metrics:      app.Metrics.Handler(),
		JWTSecret:    cfg.JWT.Secret,
		Log:          log,
	})

	// El runner corre siempre; el interruptor de ajustes decide si cada pasada trabaja.
	runCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	if err := app.Scheduler.Start(runCtx); err != nil {
		log.Fatal().Err(err).Msg("iniciar planificador")
	}

	go func() {
		if err := server.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := app.Scheduler.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del planificador")
	}

	log.Info().Msg("aplicación detenida")
}
