package billing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// SubmitTest envía una factura de prueba con comprador y líneas fijas.
func (l *Lifecycle) SubmitTest(ctx context.Context) (*entity.InvoiceRecord, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return nil, fmt.Errorf("test invoice: sufijo aleatorio: %w", err)
	}
	now := l.clock.Now().In(l.cfg.location())
	no := fmt.Sprintf("%s%s-%s", entity.PrefixTest, now.Format("20060102-150405"), strings.ToUpper(hex.EncodeToString(suffix)))
	return l.Submit(ctx, TestContext(no), 0)
}

// TestContext datos fijos de la factura de prueba:
// 1 × 1100.00 y 2 × 1234.50, sin impuesto, total 3569.00.
func TestContext(documentNo string) *myinvois.BuildContext {
	lines := []myinvois.Line{
		{ID: "1", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("1100.00"), Description: "Consultation Service"},
		{ID: "2", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("1234.50"), Description: "Follow-up Service"},
	}
	total := decimal.Zero
	for _, ln := range lines {
		total = total.Add(ln.Total())
	}
	return &myinvois.BuildContext{
		Kind:       entity.KindTest,
		DocumentNo: documentNo,
		Buyer: myinvois.Party{
			TIN:     catalog.TINGenericLocal,
			IDType:  catalog.IDSchemeNRIC,
			IDValue: catalog.NotApplicable,
			Name:    "Test Buyer Name",
			Email:   "test_buyer@example.com",
			Phone:   catalog.DefaultPhone,
			Address: myinvois.PartyAddress{
				Line1:     "Lot 77, Jalan Test",
				City:      "Kuala Lumpur",
				Postcode:  "50480",
				StateCode: "14",
				Country:   catalog.CountryMalaysia,
			},
		},
		ItemClass: catalog.ClassConsolidated,
		Lines:     lines,
		Total:     total,
		TaxAmount: decimal.Zero,
	}
}
