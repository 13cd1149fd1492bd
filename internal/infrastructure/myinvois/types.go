// Package myinvois arma el documento UBL (formato JSON de MyInvois) y habla
// con el API de LHDN: token OAuth, envío, estado, cancelación y validación de TIN.
package myinvois

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// PartyAddress dirección postal de una parte (ya en códigos LHDN).
type PartyAddress struct {
	Line1     string
	City      string
	Postcode  string
	StateCode string // 01..17
	Country   string // ISO-3166 alfa-3
}

// Party identidad, contacto y dirección de vendedor o comprador.
type Party struct {
	TIN     string
	IDType  string
	IDValue string
	SST     string // solo vendedor
	TTX     string // solo vendedor
	Name    string
	Email   string
	Phone   string
	Address PartyAddress
}

// Line línea del documento.
type Line struct {
	ID          string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Description string
}

// Total devuelve cantidad × precio unitario.
func (l Line) Total() decimal.Decimal { return l.Quantity.Mul(l.UnitPrice) }

// Reference apunta a la factura original de una nota de crédito/reembolso.
type Reference struct {
	DocumentNo string
	RemoteID   string
}

// BuildContext reúne todo lo necesario para construir un documento.
type BuildContext struct {
	Kind       entity.DocumentKind
	DocumentNo string
	IssuedAt   time.Time // se emite en UTC
	UBLVersion string    // 1.0 sin firma, 1.1 con firma

	Seller   Party
	Buyer    Party
	Industry string // código MSIC del vendedor

	// ItemClass explícito (opcional). Si viene vacío se deriva del TIN del comprador.
	ItemClass     string
	TaxCategoryID string

	Lines     []Line
	Total     decimal.Decimal
	TaxAmount decimal.Decimal

	Reference *Reference // obligatorio para credit_note / refund_note
}
