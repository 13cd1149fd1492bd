package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
)

// OrderHandler recibe los eventos de pedidos del comercio.
type OrderHandler struct {
	lc     *billing.Lifecycle
	orders repository.OrderRepository
}

// NewOrderHandler construye el handler.
func NewOrderHandler(lc *billing.Lifecycle, orders repository.OrderRepository) *OrderHandler {
	return &OrderHandler{lc: lc, orders: orders}
}

// Ingest guarda el pedido completado y, salvo submit=false, lo envía (o lo encola).
// POST /api/orders
func (h *OrderHandler) Ingest(c *fiber.Ctx) error {
	var in dto.OrderRequest
	if err := bindBody(c, &in); err != nil {
		return writeError(c, err)
	}
	o := in.ToEntity()
	if err := h.orders.Save(c.Context(), o); err != nil {
		return writeError(c, err)
	}
	if !in.ShouldSubmit() {
		return c.Status(fiber.StatusAccepted).JSON(dto.OrderSubmitResponse{OrderID: o.ID, Skipped: true, Reason: "guardado sin enviar"})
	}
	return h.submit(c, o)
}

// Submit envía un pedido ya guardado.
// POST /api/orders/:id/submit
func (h *OrderHandler) Submit(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	o, err := h.orders.FindByID(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if o == nil {
		return writeError(c, domain.ErrNotFound)
	}
	return h.submit(c, o)
}

func (h *OrderHandler) submit(c *fiber.Ctx, o *entity.Order) error {
	rec, err := h.lc.SubmitOrder(c.Context(), o)
	if errors.Is(err, domain.ErrOrderSkipped) {
		return c.JSON(dto.OrderSubmitResponse{OrderID: o.ID, Skipped: true, Reason: err.Error()})
	}
	if err != nil {
		return writeError(c, err)
	}
	share, _ := billing.ShareURL(h.lc.Config().PortalHost, rec)
	resp := dto.NewRecordResponse(rec, share)
	return c.Status(fiber.StatusCreated).JSON(dto.OrderSubmitResponse{OrderID: o.ID, Record: &resp})
}

// Refunded emite la nota de crédito del pedido reembolsado, si corresponde.
// POST /api/orders/:id/refunded
func (h *OrderHandler) Refunded(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	cn, err := h.lc.HandleOrderRefunded(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if cn == nil {
		return c.JSON(dto.OrderSubmitResponse{OrderID: id, Skipped: true, Reason: "sin factura vigente o nota de crédito ya emitida"})
	}
	share, _ := billing.ShareURL(h.lc.Config().PortalHost, cn)
	resp := dto.NewRecordResponse(cn, share)
	return c.Status(fiber.StatusCreated).JSON(dto.OrderSubmitResponse{OrderID: id, Record: &resp})
}
