package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// DocumentHandler expone el libro de envíos y las operaciones del ciclo de vida.
// Todas las rutas identifican la fila por su número de documento.
type DocumentHandler struct {
	lc      *billing.Lifecycle
	receipt *billing.ReceiptUseCase
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(lc *billing.Lifecycle, receipt *billing.ReceiptUseCase) *DocumentHandler {
	return &DocumentHandler{lc: lc, receipt: receipt}
}

func (h *DocumentHandler) respond(c *fiber.Ctx, status int, rec *entity.InvoiceRecord) error {
	share, _ := billing.ShareURL(h.lc.Config().PortalHost, rec)
	return c.Status(status).JSON(dto.NewRecordResponse(rec, share))
}

// load busca la fila del parámetro :no.
func (h *DocumentHandler) load(c *fiber.Ctx) (*entity.InvoiceRecord, error) {
	no := c.Params("no")
	if no == "" {
		return nil, invalidRequest("VALIDATION", "número de documento requerido")
	}
	return h.lc.Get(c.Context(), no)
}

// loadSubmitted busca la fila y exige que ya tenga UUID remoto.
func (h *DocumentHandler) loadSubmitted(c *fiber.Ctx) (*entity.InvoiceRecord, error) {
	rec, err := h.load(c)
	if err != nil {
		return nil, err
	}
	if rec.RemoteID == "" {
		return nil, fmt.Errorf("%w: %s aún no tiene UUID remoto", domain.ErrConflict, rec.DocumentNo)
	}
	return rec, nil
}

// List lista el libro con filtros de estado y familia.
// GET /api/documents?status=&class=&limit=&offset=
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	var q dto.ListRecordsRequest
	if err := bindQuery(c, &q); err != nil {
		return writeError(c, err)
	}
	f := q.Filter()
	rows, total, err := h.lc.List(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	portal := h.lc.Config().PortalHost
	items := make([]dto.RecordResponse, 0, len(rows))
	for _, rec := range rows {
		share, _ := billing.ShareURL(portal, rec)
		items = append(items, dto.NewRecordResponse(rec, share))
	}
	return c.JSON(dto.ListRecordsResponse{
		Items: items,
		Page:  dto.ListPage{Limit: f.Limit, Offset: f.Offset, Total: total},
	})
}

// Get devuelve una fila.
// GET /api/documents/:no
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusOK, rec)
}

// SubmitTest envía un documento de prueba con datos fijos.
// POST /api/documents/test
func (h *DocumentHandler) SubmitTest(c *fiber.Ctx) error {
	rec, err := h.lc.SubmitTest(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusCreated, rec)
}

// Sync consulta el estado remoto del documento.
// POST /api/documents/:no/sync
func (h *DocumentHandler) Sync(c *fiber.Ctx) error {
	rec, err := h.loadSubmitted(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.lc.SyncStatus(c.Context(), rec.RemoteID)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusOK, out)
}

// Cancel pide la cancelación dentro de la ventana permitida.
// POST /api/documents/:no/cancel
func (h *DocumentHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelRequest
	if len(c.Body()) > 0 {
		if err := bindBody(c, &in); err != nil {
			return writeError(c, err)
		}
	}
	rec, err := h.loadSubmitted(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.lc.Cancel(c.Context(), rec.RemoteID, in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusOK, out)
}

// Resubmit reenvía manualmente una fila en retry, failed o invalid.
// POST /api/documents/:no/resubmit
func (h *DocumentHandler) Resubmit(c *fiber.Ctx) error {
	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	switch rec.Status {
	case entity.StatusRetry, entity.StatusFailed, entity.StatusInvalid:
	default:
		return writeError(c, fmt.Errorf("%w: no se reenvía un documento en estado %s", domain.ErrConflict, rec.Status))
	}
	out, err := h.lc.Resubmit(c.Context(), rec)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusOK, out)
}

// CreateCreditNote emite la nota de crédito de la factura :no.
// POST /api/documents/:no/credit-note
func (h *DocumentHandler) CreateCreditNote(c *fiber.Ctx) error {
	out, err := h.lc.CreateCreditNote(c.Context(), c.Params("no"))
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusCreated, out)
}

// CreateRefundNote emite la nota de reembolso de la nota de crédito :no.
// POST /api/documents/:no/refund-note
func (h *DocumentHandler) CreateRefundNote(c *fiber.Ctx) error {
	out, err := h.lc.CreateRefundNote(c.Context(), c.Params("no"))
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusCreated, out)
}

// MarkRefundComplete marca la nota de crédito :no como reembolsada sin emitir nota.
// POST /api/documents/:no/refund-complete
func (h *DocumentHandler) MarkRefundComplete(c *fiber.Ctx) error {
	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.lc.MarkRefundCompleteWithoutNote(c.Context(), rec.ID)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, fiber.StatusOK, out)
}

// Delete borra una fila fallida, inválida o cancelada.
// DELETE /api/documents/:no
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.lc.Delete(c.Context(), rec.ID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Receipt descarga el comprobante PDF de un documento válido.
// GET /api/documents/:no/receipt
func (h *DocumentHandler) Receipt(c *fiber.Ctx) error {
	pdf, filename, err := h.receipt.Download(c.Context(), c.Params("no"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(pdf)
}
