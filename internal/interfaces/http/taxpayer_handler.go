package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
)

// TaxpayerHandler consulta al API de LHDN por contribuyentes.
type TaxpayerHandler struct {
	lc *billing.Lifecycle
}

// NewTaxpayerHandler construye el handler.
func NewTaxpayerHandler(lc *billing.Lifecycle) *TaxpayerHandler {
	return &TaxpayerHandler{lc: lc}
}

// ValidateTIN valida que el TIN corresponda al documento de identidad.
// GET /api/taxpayers/:tin/validate?id_type=NRIC&id_value=...
func (h *TaxpayerHandler) ValidateTIN(c *fiber.Ctx) error {
	tin := c.Params("tin")
	idType := c.Query("id_type")
	idValue := c.Query("id_value")
	valid, err := h.lc.ValidateTIN(c.Context(), tin, idType, idValue)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ValidateTINResponse{TIN: tin, IDType: idType, IDValue: idValue, Valid: valid})
}

// RefreshToken fuerza un token OAuth nuevo.
// POST /api/token/refresh
func (h *TaxpayerHandler) RefreshToken(c *fiber.Ctx) error {
	if err := h.lc.RefreshToken(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
