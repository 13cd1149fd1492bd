package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing/billingtest"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// validOriginal envía INV-1 y lo deja validado (payload real, sin pedido).
func validOriginal(t *testing.T, env *billingtest.Env) *entity.InvoiceRecord {
	t.Helper()
	ctx := context.Background()
	rec, err := env.Lifecycle.Submit(ctx, invoiceContext("INV-1"), 0)
	require.NoError(t, err)
	require.NoError(t, env.Ledger.UpdateRemoteState(ctx, rec.RemoteID, entity.StatusValid, "LONG-1", 200, "{}"))
	return env.Ledger.Row("INV-1")
}

// ──────────────────────────────────────────────────────────────────────────────
// Unicidad de notas de crédito y reembolso
// ──────────────────────────────────────────────────────────────────────────────

func TestCreditYRefund_UnicidadYCierreDeReembolso(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	orig := validOriginal(t, env)

	cn, err := env.Lifecycle.CreateCreditNote(ctx, "INV-1")
	require.NoError(t, err, "la primera nota de crédito se emite")
	assert.Equal(t, "CN-INV-1", cn.DocumentNo)
	assert.Equal(t, entity.StatusSubmitted, cn.Status)

	_, err = env.Lifecycle.CreateCreditNote(ctx, "INV-1")
	assert.ErrorIs(t, err, domain.ErrDuplicateCreditNote, "la segunda se rechaza")

	rn, err := env.Lifecycle.CreateRefundNote(ctx, "CN-INV-1")
	require.NoError(t, err)
	assert.Equal(t, "RN-INV-1", rn.DocumentNo)
	assert.True(t, env.Ledger.Row("CN-INV-1").RefundComplete, "la CN queda reembolsada")

	_, err = env.Lifecycle.CreateRefundNote(ctx, "CN-INV-1")
	assert.ErrorIs(t, err, domain.ErrDuplicateRefundNote)

	// La nota referencia la factura original.
	inv := payloadOf(t, cn).Child("Invoice")
	assert.Equal(t, catalog.DocTypeCreditNote, inv.PathValue("InvoiceTypeCode"))
	assert.Equal(t, "INV-1", inv.PathValue("BillingReference", "InvoiceDocumentReference", "ID"))
	assert.Equal(t, orig.RemoteID, inv.PathValue("BillingReference", "InvoiceDocumentReference", "UUID"))
	assert.Equal(t, "3569.00", inv.PathValue("LegalMonetaryTotal", "PayableAmount"), "importes releídos del payload original")

	rnInv := payloadOf(t, rn).Child("Invoice")
	assert.Equal(t, catalog.DocTypeRefundNote, rnInv.PathValue("InvoiceTypeCode"))
	assert.Equal(t, "INV-1", rnInv.PathValue("BillingReference", "InvoiceDocumentReference", "ID"),
		"la nota de reembolso apunta a la factura, no a la CN")
}

func TestCreateCreditNote_OriginalNoElegible(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "INV-2", Status: entity.StatusRetry})
	env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "INV-3", Status: entity.StatusValid})

	_, err := env.Lifecycle.CreateCreditNote(ctx, "INV-2")
	assert.ErrorIs(t, err, domain.ErrOriginalNotEligible, "en retry no se puede acreditar")

	_, err = env.Lifecycle.CreateCreditNote(ctx, "INV-3")
	assert.ErrorIs(t, err, domain.ErrOriginalNotEligible, "sin UUID remoto no se puede acreditar")

	_, err = env.Lifecycle.CreateCreditNote(ctx, "INV-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.Lifecycle.CreateCreditNote(ctx, "CN-INV-3")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, env.Transport.Submissions)
}

func TestCreateCreditNote_SeRehaceTrasCancelada(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	validOriginal(t, env)
	env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "CN-INV-1", Status: entity.StatusCancelled, RemoteID: "R-OLD", RetryCount: 3})

	cn, err := env.Lifecycle.CreateCreditNote(ctx, "INV-1")
	require.NoError(t, err, "una CN cancelada no bloquea")
	assert.Equal(t, 0, cn.RetryCount)
	assert.Equal(t, "R-CN-INV-1", cn.RemoteID)
}

func TestCreateCreditNote_DesdeElPedido(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	require.NoError(t, env.Orders.Save(ctx, sampleOrder()))
	_, err := env.Lifecycle.SubmitOrder(ctx, sampleOrder())
	require.NoError(t, err)
	require.NoError(t, env.Ledger.UpdateRemoteState(ctx, "R-1001", entity.StatusValid, "L", 200, "{}"))

	cn, err := env.Lifecycle.CreateCreditNote(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), cn.OrderRef)
	inv := payloadOf(t, cn).Child("Invoice")
	assert.Equal(t, "Klinik Pelanggan Sdn Bhd",
		inv.PathValue("AccountingCustomerParty", "Party", "PartyLegalEntity", "RegistrationName"))
}

func TestCreateRefundNote_Precondiciones(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()

	_, err := env.Lifecycle.CreateRefundNote(ctx, "INV-1")
	assert.ErrorIs(t, err, domain.ErrNotCreditNote)

	validOriginal(t, env)
	_, err = env.Lifecycle.CreateRefundNote(ctx, "CN-INV-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "sin nota de crédito no hay reembolso")
}

func TestCreateRefundNote_EnRetryNoCierraLaCN(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	validOriginal(t, env)
	_, err := env.Lifecycle.CreateCreditNote(ctx, "INV-1")
	require.NoError(t, err)

	env.Transport.SubmitFn = func(string) (*myinvois.SubmitResult, error) {
		return &myinvois.SubmitResult{StatusCode: 503, Body: "busy"}, nil
	}
	rn, err := env.Lifecycle.CreateRefundNote(ctx, "CN-INV-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRetry, rn.Status)
	assert.False(t, env.Ledger.Row("CN-INV-1").RefundComplete)

	env.Transport.SubmitFn = nil
	_, err = env.Lifecycle.Resubmit(ctx, env.Ledger.Row("RN-INV-1"))
	require.NoError(t, err)
	assert.True(t, env.Ledger.Row("CN-INV-1").RefundComplete, "el reintento aceptado cierra la CN")
}

func TestMarkRefundCompleteWithoutNote(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	cn := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "CN-9", Status: entity.StatusValid})
	inv := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "9", Status: entity.StatusValid})

	got, err := env.Lifecycle.MarkRefundCompleteWithoutNote(ctx, cn.ID)
	require.NoError(t, err)
	assert.True(t, got.RefundComplete)
	assert.True(t, env.Ledger.Row("CN-9").RefundComplete)

	_, err = env.Lifecycle.MarkRefundCompleteWithoutNote(ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrNotCreditNote)
}

func TestHandleOrderRefunded(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	require.NoError(t, env.Orders.Save(ctx, sampleOrder()))

	cn, err := env.Lifecycle.HandleOrderRefunded(ctx, 1001)
	require.NoError(t, err)
	assert.Nil(t, cn, "sin factura enviada no hay nota de crédito")

	_, err = env.Lifecycle.SubmitOrder(ctx, sampleOrder())
	require.NoError(t, err)

	cn, err = env.Lifecycle.HandleOrderRefunded(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, cn)
	assert.Equal(t, "CN-1001", cn.DocumentNo)

	again, err := env.Lifecycle.HandleOrderRefunded(ctx, 1001)
	require.NoError(t, err)
	assert.Nil(t, again, "con una CN vigente no se emite otra")
}
