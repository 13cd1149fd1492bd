package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// RuntimeSettings expone los dos ajustes que cambian en caliente: el modo de
// firma (versión UBL) y el switch del planificador.
type RuntimeSettings struct {
	repo             repository.SettingsRepository
	initialUBL       string
	schedulerDefault bool
}

// NewRuntimeSettings construye el acceso a ajustes con sus valores por defecto.
func NewRuntimeSettings(repo repository.SettingsRepository, initialUBL string, schedulerDefault bool) *RuntimeSettings {
	if !catalog.ValidUBLVersions[initialUBL] {
		initialUBL = catalog.UBLVersionUnsigned
	}
	return &RuntimeSettings{repo: repo, initialUBL: initialUBL, schedulerDefault: schedulerDefault}
}

// UBLVersion devuelve el modo de firma vigente. Un valor guardado inválido se lee como 1.0.
func (s *RuntimeSettings) UBLVersion(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, repository.SettingUBLVersion)
	if err != nil {
		return "", fmt.Errorf("leer versión UBL: %w", err)
	}
	switch {
	case v == "":
		return s.initialUBL, nil
	case !catalog.ValidUBLVersions[v]:
		return catalog.UBLVersionUnsigned, nil
	}
	return v, nil
}

// SetUBLVersion guarda el modo de firma sin más validación (ver CertificateService).
func (s *RuntimeSettings) SetUBLVersion(ctx context.Context, v string) error {
	if !catalog.ValidUBLVersions[v] {
		return fmt.Errorf("%w: versión UBL %q", domain.ErrInvalidInput, v)
	}
	if err := s.repo.Set(ctx, repository.SettingUBLVersion, v); err != nil {
		return fmt.Errorf("guardar versión UBL: %w", err)
	}
	return nil
}

// SchedulerEnabled indica si las pasadas periódicas pueden correr.
func (s *RuntimeSettings) SchedulerEnabled(ctx context.Context) (bool, error) {
	v, err := s.repo.Get(ctx, repository.SettingSchedulerEnabled)
	if err != nil {
		return false, fmt.Errorf("leer switch del planificador: %w", err)
	}
	if v == "" {
		return s.schedulerDefault, nil
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return s.schedulerDefault, nil
	}
	return enabled, nil
}

// SetSchedulerEnabled enciende o apaga las pasadas periódicas.
func (s *RuntimeSettings) SetSchedulerEnabled(ctx context.Context, enabled bool) error {
	if err := s.repo.Set(ctx, repository.SettingSchedulerEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("guardar switch del planificador: %w", err)
	}
	return nil
}
