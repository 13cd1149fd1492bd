package http

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
)

// maxP12Size tope del archivo .p12 subido.
const maxP12Size = 1 << 20

// CertificateHandler administra los certificados de firma (solo admin).
type CertificateHandler struct {
	svc *billing.CertificateService
}

// NewCertificateHandler construye el handler.
func NewCertificateHandler(svc *billing.CertificateService) *CertificateHandler {
	return &CertificateHandler{svc: svc}
}

// List lista los certificados sin exponer la llave.
// GET /api/certificates
func (h *CertificateHandler) List(c *fiber.Ctx) error {
	certs, err := h.svc.List(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	now := time.Now()
	out := make([]dto.CertificateResponse, 0, len(certs))
	for _, cert := range certs {
		out = append(out, dto.NewCertificateResponse(cert, now))
	}
	return c.JSON(out)
}

// Upload guarda un bundle PEM y lo deja activo.
// POST /api/certificates
func (h *CertificateHandler) Upload(c *fiber.Ctx) error {
	var in dto.UploadCertificateRequest
	if err := bindBody(c, &in); err != nil {
		return writeError(c, err)
	}
	cert, err := h.svc.Upload(c.Context(), in.PEM)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCertificateResponse(cert, time.Now()))
}

// ImportP12 importa un .p12 (multipart: file, password) y lo deja activo.
// POST /api/certificates/p12
func (h *CertificateHandler) ImportP12(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, invalidRequest("VALIDATION", "archivo .p12 requerido en el campo file"))
	}
	if fh.Size > maxP12Size {
		return writeError(c, invalidRequest("VALIDATION", "archivo .p12 demasiado grande"))
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return writeError(c, err)
	}
	cert, err := h.svc.ImportP12(c.Context(), data, c.FormValue("password"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCertificateResponse(cert, time.Now()))
}

// Activate deja activo el certificado :id.
// POST /api/certificates/:id/activate
func (h *CertificateHandler) Activate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.svc.Activate(c.Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Delete borra el certificado :id; si era el activo, la firma vuelve a 1.0.
// DELETE /api/certificates/:id
func (h *CertificateHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.svc.Delete(c.Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reset borra todos los certificados y vuelve la firma a 1.0.
// POST /api/certificates/reset
func (h *CertificateHandler) Reset(c *fiber.Ctx) error {
	if err := h.svc.Reset(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
