package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator aplica las migraciones SQL embebidas en el binario.
type Migrator struct {
	m   *migrate.Migrate
	log *logger.Logger
}

// NewMigrator abre el origen embebido contra la base indicada por dsn
// (postgres:// o postgresql://).
func NewMigrator(dsn string, log *logger.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("abrir migraciones: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(dsn))
	if err != nil {
		return nil, fmt.Errorf("crear migrador: %w", err)
	}
	return &Migrator{m: m, log: log.Component("migrate")}, nil
}

// Up aplica las migraciones pendientes. Sin cambios no es error.
func (mg *Migrator) Up() error {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info().Msg("sin migraciones pendientes")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migración up: %w", err)
	}
	version, dirty, err := mg.m.Version()
	if err != nil {
		return fmt.Errorf("leer versión: %w", err)
	}
	mg.log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migraciones aplicadas")
	return nil
}

// Down revierte todas las migraciones.
func (mg *Migrator) Down() error {
	err := mg.m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migración down: %w", err)
	}
	return nil
}

// Version devuelve la versión actual (0 si no hay ninguna aplicada).
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close libera origen y conexión.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// pgx5URL cambia el esquema al que registra el driver pgx/v5 de migrate.
func pgx5URL(dsn string) string {
	for _, p := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, p) {
			return "pgx5://" + strings.TrimPrefix(dsn, p)
		}
	}
	return dsn
}
