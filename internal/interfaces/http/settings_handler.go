package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
)

// SettingsHandler expone los ajustes de ejecución: versión UBL e interruptor del planificador.
type SettingsHandler struct {
	certs    *billing.CertificateService
	settings *billing.RuntimeSettings
}

// NewSettingsHandler construye el handler.
func NewSettingsHandler(certs *billing.CertificateService, settings *billing.RuntimeSettings) *SettingsHandler {
	return &SettingsHandler{certs: certs, settings: settings}
}

// Get devuelve los ajustes actuales.
// GET /api/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	ubl, err := h.settings.UBLVersion(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	enabled, err := h.settings.SchedulerEnabled(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.SettingsResponse{UBLVersion: ubl, SchedulerEnabled: enabled})
}

// SetUBLVersion cambia el modo de firma; 1.1 exige certificado activo.
// PUT /api/settings/ubl-version
func (h *SettingsHandler) SetUBLVersion(c *fiber.Ctx) error {
	var in dto.UBLVersionRequest
	if err := bindBody(c, &in); err != nil {
		return writeError(c, err)
	}
	if err := h.certs.SetUBLVersion(c.Context(), in.Version); err != nil {
		return writeError(c, err)
	}
	return h.Get(c)
}

// SetScheduler enciende o apaga las pasadas periódicas.
// PUT /api/settings/scheduler
func (h *SettingsHandler) SetScheduler(c *fiber.Ctx) error {
	var in dto.SchedulerSwitchRequest
	if err := bindBody(c, &in); err != nil {
		return writeError(c, err)
	}
	if err := h.settings.SetSchedulerEnabled(c.Context(), *in.Enabled); err != nil {
		return writeError(c, err)
	}
	return h.Get(c)
}
