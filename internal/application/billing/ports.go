package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
)

// DocumentBuilder arma el árbol del documento (transformación pura).
type DocumentBuilder interface {
	Build(bc *myinvois.BuildContext) (*document.Node, error)
}

// DocumentSigner firma el documento en el marcador de firma.
type DocumentSigner interface {
	Sign(doc *document.Node, m *signer.Material) (*signer.Signature, error)
}

// ReceiptLine línea lista para imprimir.
type ReceiptLine struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// ReceiptData datos del comprobante de un documento validado.
type ReceiptData struct {
	DocumentNo string
	Kind       string
	RemoteID   string
	LongID     string
	IssuedAt   time.Time
	Seller     myinvois.Party
	Buyer      myinvois.Party
	Lines      []ReceiptLine
	Total      decimal.Decimal
	TaxAmount  decimal.Decimal
	ShareURL   string
}

// ReceiptPDFGenerator genera el PDF del comprobante.
type ReceiptPDFGenerator interface {
	GenerateReceiptPDF(ctx context.Context, data *ReceiptData) ([]byte, error)
}
