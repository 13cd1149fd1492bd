package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migraciones SQL embebidas (libro, certificados, ajustes, pedidos)",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Aplica las migraciones pendientes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(mg *postgres.Migrator) error { return mg.Up() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revierte todas las migraciones (borra las tablas)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(mg *postgres.Migrator) error { return mg.Down() })
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Muestra la versión aplicada",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(mg *postgres.Migrator) error {
			v, dirty, err := mg.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "versión %d (dirty=%t)\n", v, dirty)
			return nil
		})
	},
}

func withMigrator(fn func(*postgres.Migrator) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	mg, err := postgres.NewMigrator(cfg.DB.ConnectionString(), log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mg.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("cerrar migrador")
		}
	}()
	return fn(mg)
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
