package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tikusl4ju/myinvoice-sync/internal/bootstrap"
	"github.com/tikusl4ju/myinvoice-sync/pkg/config"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

var version = "1.0.0"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "myinvoisctl",
	Short: "CLI de operación del envío de documentos a MyInvois (LHDN)",
	Long: `myinvoisctl opera el servicio desde la terminal con la misma
configuración que el servidor (.env + variables de entorno).

Los comandos que tocan el libro de envíos abren PostgreSQL (y Redis si
está configurado); cert inspect y verify trabajan sin conexión.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute corre la CLI y sale con código 1 si el comando falla.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "nivel de log (trace, debug, info, warn, error)")
}

// loadConfig lee la configuración y el logger del proceso.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("cargar configuración: %w", err)
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	return cfg, bootstrap.NewLogger(cfg), nil
}

// withApp arma las dependencias, corre fn y las libera.
func withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// printJSON escribe v indentado en stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
