package dto

import (
	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// OrderRequest body de POST /api/orders (webhook de pedido completado).
type OrderRequest struct {
	ID            int64                `json:"id" validate:"required,gt=0"`
	Number        string               `json:"number" validate:"required,max=64"`
	PaymentMethod string               `json:"payment_method" validate:"max=100"`
	Billing       entity.Address       `json:"billing"`
	Shipping      entity.Address       `json:"shipping"`
	Buyer         BuyerTINRequest      `json:"buyer"`
	Items         []OrderItemRequest   `json:"items" validate:"required,min=1,dive"`
	ShippingLines []OrderChargeRequest `json:"shipping_lines" validate:"dive"`
	FeeLines      []OrderChargeRequest `json:"fee_lines" validate:"dive"`
	// Submit envía el documento al recibir el pedido; false solo lo guarda.
	Submit *bool `json:"submit,omitempty"`
}

// BuyerTINRequest identidad fiscal validada del comprador (opcional).
type BuyerTINRequest struct {
	TIN     string `json:"tin" validate:"omitempty,max=20"`
	IDType  string `json:"id_type" validate:"required_with=TIN"`
	IDValue string `json:"id_value" validate:"required_with=TIN"`
}

// OrderItemRequest línea de producto.
type OrderItemRequest struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Tax       decimal.Decimal `json:"tax"`
}

// OrderChargeRequest cargo de envío o comisión.
type OrderChargeRequest struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
	Tax   decimal.Decimal `json:"tax"`
}

// ShouldSubmit indica si el pedido se envía al recibirlo (por defecto sí).
func (r *OrderRequest) ShouldSubmit() bool { return r.Submit == nil || *r.Submit }

// ToEntity convierte el body al pedido de dominio.
func (r *OrderRequest) ToEntity() *entity.Order {
	o := &entity.Order{
		ID:            r.ID,
		Number:        r.Number,
		PaymentMethod: r.PaymentMethod,
		Billing:       r.Billing,
		Shipping:      r.Shipping,
		Buyer: entity.BuyerTIN{
			TIN:     r.Buyer.TIN,
			IDType:  r.Buyer.IDType,
			IDValue: r.Buyer.IDValue,
		},
	}
	for _, it := range r.Items {
		o.Items = append(o.Items, entity.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Total:     it.Total,
			Tax:       it.Tax,
		})
	}
	o.ShippingLines = toCharges(r.ShippingLines)
	o.FeeLines = toCharges(r.FeeLines)
	return o
}

func toCharges(in []OrderChargeRequest) []entity.OrderCharge {
	out := make([]entity.OrderCharge, 0, len(in))
	for _, c := range in {
		out = append(out, entity.OrderCharge{Name: c.Name, Total: c.Total, Tax: c.Tax})
	}
	return out
}

// OrderSubmitResponse resultado de enviar un pedido.
type OrderSubmitResponse struct {
	OrderID int64           `json:"order_id"`
	Skipped bool            `json:"skipped"`
	Reason  string          `json:"reason,omitempty"`
	Record  *RecordResponse `json:"record,omitempty"`
}
