package bootstrap

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing/billingtest"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois/signer/signertest"
)

// ──────────────────────────────────────────────────────────────────────────────
// Cableado del firmante
// ──────────────────────────────────────────────────────────────────────────────

func unsignedInvoice(t *testing.T, issuedAt time.Time) *document.Node {
	t.Helper()
	doc, err := myinvois.NewUBLBuilder().Build(&myinvois.BuildContext{
		Kind:       entity.KindInvoice,
		DocumentNo: "INV-1",
		IssuedAt:   issuedAt,
		UBLVersion: "1.1",
		Seller:     myinvois.Party{TIN: "C1", IDType: "BRN", IDValue: "2020", Name: "Seller"},
		Buyer:      myinvois.Party{TIN: "EI00000000010", Name: "Buyer"},
		Lines: []myinvois.Line{
			{ID: "1", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("10.00"), Description: "x"},
		},
		Total: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	return doc
}

func TestNewSigner_SigningTimeSaleDelRelojInyectado(t *testing.T) {
	clock := billingtest.NewClock(time.Date(2024, 3, 5, 14, 15, 16, 0, time.UTC))
	m, err := signer.LoadPEM(signertest.NewBundle(t).PEM)
	require.NoError(t, err)
	s := newSigner(clock)

	sig, err := s.Sign(unsignedInvoice(t, clock.Now()), m)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T14:15:16Z", sig.SigningTime)

	clock.Advance(time.Hour)
	sig, err = s.Sign(unsignedInvoice(t, clock.Now()), m)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T15:15:16Z", sig.SigningTime, "sigue al reloj, no a time.Now")
}
