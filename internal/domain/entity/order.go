package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order es la vista de solo lectura de un pedido del comercio.
type Order struct {
	ID            int64
	Number        string // número visible del pedido
	PaymentMethod string
	Billing       Address
	Shipping      Address
	Buyer         BuyerTIN // TIN validado del cliente (vacío si no tiene)
	Items         []OrderItem
	ShippingLines []OrderCharge
	FeeLines      []OrderCharge
	CreatedAt     time.Time
}

// Address es la dirección de facturación o envío del pedido.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	State     string `json:"state"`   // código de estado del comercio (ej. SGR, KUL)
	Country   string `json:"country"` // ISO-3166 alfa-2
}

// BuyerTIN es la identidad fiscal validada del comprador.
type BuyerTIN struct {
	TIN     string
	IDType  string
	IDValue string
}

// HasTIN indica si el comprador tiene TIN validado.
func (b BuyerTIN) HasTIN() bool { return b.TIN != "" }

// OrderItem es una línea de producto del pedido.
type OrderItem struct {
	ProductID int64
	Name      string
	Quantity  decimal.Decimal
	Total     decimal.Decimal // total de la línea sin impuesto
	Tax       decimal.Decimal
}

// OrderCharge es un cargo de envío o comisión.
type OrderCharge struct {
	Name  string
	Total decimal.Decimal
	Tax   decimal.Decimal
}
