package repository

import "context"

// Claves de configuración mutable en tiempo de ejecución.
const (
	SettingUBLVersion       = "ubl_version"
	SettingSchedulerEnabled = "scheduler_enabled"
)

// SettingsRepository es el almacén clave-valor de ajustes persistentes.
// Get devuelve ("", nil) si la clave no existe.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
