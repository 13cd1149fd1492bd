package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
)

// ReceiptUseCase genera el comprobante PDF de un documento validado por LHDN.
type ReceiptUseCase struct {
	ledger     repository.LedgerRepository
	seller     myinvois.Party
	portalHost string
	generator  ReceiptPDFGenerator
}

// NewReceiptUseCase construye el caso de uso.
func NewReceiptUseCase(ledger repository.LedgerRepository, cfg LifecycleConfig, generator ReceiptPDFGenerator) *ReceiptUseCase {
	return &ReceiptUseCase{
		ledger:     ledger,
		seller:     cfg.Seller,
		portalHost: cfg.PortalHost,
		generator:  generator,
	}
}

// Download devuelve el PDF y el nombre de archivo.
//
// Retorna:
//   - domain.ErrNotFound     si el documento no existe.
//   - domain.ErrInvalidInput si aún no está validado (sin long id).
func (uc *ReceiptUseCase) Download(ctx context.Context, documentNo string) (pdfBytes []byte, filename string, err error) {
	// ── 1. Cargar fila ────────────────────────────────────────────────────────
	rec, err := uc.ledger.GetByDocumentNo(ctx, documentNo)
	if err != nil {
		return nil, "", fmt.Errorf("receipt: buscar fila: %w", err)
	}
	if rec == nil {
		return nil, "", domain.ErrNotFound
	}

	// ── 2. Enlace público (solo documentos válidos) ──────────────────────────
	share, err := ShareURL(uc.portalHost, rec)
	if err != nil {
		return nil, "", err
	}

	// ── 3. Releer el documento enviado ────────────────────────────────────────
	root, err := document.ParseBase64(rec.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("receipt: payload de %s: %w", documentNo, err)
	}
	bc, err := myinvois.ReadDocument(root)
	if err != nil {
		return nil, "", fmt.Errorf("receipt: %w", err)
	}

	data := &ReceiptData{
		DocumentNo: rec.DocumentNo,
		Kind:       kindLabel(rec.DocumentKind()),
		RemoteID:   rec.RemoteID,
		LongID:     rec.LongID,
		IssuedAt:   issuedAt(root, rec.CreatedAt),
		Seller:     uc.seller,
		Buyer:      bc.Buyer,
		Total:      bc.Total,
		TaxAmount:  bc.TaxAmount,
		ShareURL:   share,
	}
	for _, ln := range bc.Lines {
		data.Lines = append(data.Lines, ReceiptLine{
			Description: ln.Description,
			Quantity:    ln.Quantity,
			UnitPrice:   ln.UnitPrice,
			Total:       ln.Total(),
		})
	}

	// ── 4. Generar PDF ────────────────────────────────────────────────────────
	pdfBytes, err = uc.generator.GenerateReceiptPDF(ctx, data)
	if err != nil {
		return nil, "", fmt.Errorf("receipt: generación fallida: %w", err)
	}
	return pdfBytes, fmt.Sprintf("receipt_%s.pdf", rec.DocumentNo), nil
}

// kindLabel nombre legible del tipo de documento.
func kindLabel(k entity.DocumentKind) string {
	switch k {
	case entity.KindCreditNote:
		return "Credit Note"
	case entity.KindRefundNote:
		return "Refund Note"
	}
	return "Invoice"
}

// issuedAt lee IssueDate/IssueTime del documento; si faltan usa fallback.
func issuedAt(root *document.Node, fallback time.Time) time.Time {
	date := root.PathValue("Invoice", "IssueDate")
	clock := root.PathValue("Invoice", "IssueTime")
	if date == "" || clock == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, date+"T"+clock)
	if err != nil {
		return fallback
	}
	return t
}
