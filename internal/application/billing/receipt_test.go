package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing/billingtest"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

type fakeReceiptPDF struct {
	got *billing.ReceiptData
	err error
}

func (f *fakeReceiptPDF) GenerateReceiptPDF(_ context.Context, d *billing.ReceiptData) ([]byte, error) {
	f.got = d
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4"), nil
}

func validatedInvoice(t *testing.T, env *billingtest.Env, no string) {
	t.Helper()
	ctx := context.Background()
	rec, err := env.Lifecycle.Submit(ctx, invoiceContext(no), 0)
	require.NoError(t, err)
	_, err = env.Lifecycle.SyncStatus(ctx, rec.RemoteID)
	require.NoError(t, err)
}

func TestReceipt_DocumentoValido(t *testing.T) {
	env := billingtest.NewEnv(nil)
	validatedInvoice(t, env, "INV-20")
	gen := &fakeReceiptPDF{}
	uc := billing.NewReceiptUseCase(env.Ledger, billingtest.Config(), gen)

	pdf, filename, err := uc.Download(context.Background(), "INV-20")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), pdf)
	assert.Equal(t, "receipt_INV-20.pdf", filename)

	d := gen.got
	require.NotNil(t, d)
	assert.Equal(t, "Invoice", d.Kind)
	assert.Equal(t, "R-INV-20", d.RemoteID)
	assert.Equal(t, "LONG-R-INV-20", d.LongID)
	assert.Equal(t, "https://preprod.myinvois.hasil.gov.my/R-INV-20/share/LONG-R-INV-20", d.ShareURL)
	assert.Equal(t, "KLINIK CONTOH SDN BHD", d.Seller.Name)
	assert.True(t, d.IssuedAt.Equal(time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)), "fecha de emisión del documento, obtenida %s", d.IssuedAt)
	require.Len(t, d.Lines, 2)
	assert.True(t, d.Total.Equal(decimal.NewFromInt(3569)), "total obtenido %s", d.Total)
}

func TestReceipt_NoValidadoONoExiste(t *testing.T) {
	env := billingtest.NewEnv(nil)
	_, err := env.Lifecycle.Submit(context.Background(), invoiceContext("INV-21"), 0)
	require.NoError(t, err)
	uc := billing.NewReceiptUseCase(env.Ledger, billingtest.Config(), &fakeReceiptPDF{})

	_, _, err = uc.Download(context.Background(), "INV-21")
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "submitted sin validar no tiene comprobante")

	_, _, err = uc.Download(context.Background(), "INV-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceipt_NotaDeCredito(t *testing.T) {
	env := billingtest.NewEnv(nil)
	validatedInvoice(t, env, "INV-1")
	cn, err := env.Lifecycle.CreateCreditNote(context.Background(), "INV-1")
	require.NoError(t, err)
	_, err = env.Lifecycle.SyncStatus(context.Background(), cn.RemoteID)
	require.NoError(t, err)
	gen := &fakeReceiptPDF{}
	uc := billing.NewReceiptUseCase(env.Ledger, billingtest.Config(), gen)

	_, filename, err := uc.Download(context.Background(), "CN-INV-1")
	require.NoError(t, err)
	assert.Equal(t, "receipt_CN-INV-1.pdf", filename)
	assert.Equal(t, "Credit Note", gen.got.Kind)
}

func TestReceipt_FallaDelGenerador(t *testing.T) {
	env := billingtest.NewEnv(nil)
	validatedInvoice(t, env, "INV-22")
	boom := errors.New("maroto")
	uc := billing.NewReceiptUseCase(env.Ledger, billingtest.Config(), &fakeReceiptPDF{err: boom})

	_, _, err := uc.Download(context.Background(), "INV-22")
	assert.ErrorIs(t, err, boom)
}

func TestShareURL_SoloFilasValidas(t *testing.T) {
	_, err := billing.ShareURL("https://x", &entity.InvoiceRecord{Status: entity.StatusSubmitted, RemoteID: "R", LongID: "L"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
