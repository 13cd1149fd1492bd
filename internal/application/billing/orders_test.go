package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing/billingtest"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// sampleOrder pedido local con envío, un envío gratis y una comisión.
func sampleOrder() *entity.Order {
	return &entity.Order{
		ID:            1001,
		Number:        "1001",
		PaymentMethod: "card",
		Billing: entity.Address{
			FirstName: "Ali",
			LastName:  "Bin Abu",
			Company:   "Klinik Pelanggan Sdn Bhd",
			Email:     "ali@example.com",
			Phone:     "abc",
			Address1:  "Lot 5",
			Address2:  "Jalan 2",
			City:      "Shah Alam",
			Postcode:  "40000",
			State:     "SGR",
			Country:   "MY",
		},
		Shipping: entity.Address{Phone: "+60 12-345 6789", Country: "MY"},
		Items: []entity.OrderItem{
			{ProductID: 1, Name: "Vitamina C", Quantity: dec("3"), Total: dec("100"), Tax: dec("6")},
		},
		ShippingLines: []entity.OrderCharge{
			{Total: dec("10"), Tax: dec("0.8")},
			{Name: "Gratis", Total: decimal.Zero},
		},
		FeeLines: []entity.OrderCharge{
			{Total: dec("55"), Tax: dec("3.3")},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// MapOrder
// ──────────────────────────────────────────────────────────────────────────────

func TestMapOrder_CompradorLocalConsolidado(t *testing.T) {
	bc := billing.MapOrder(sampleOrder())

	assert.Equal(t, entity.KindInvoice, bc.Kind)
	assert.Equal(t, "1001", bc.DocumentNo)
	assert.Equal(t, catalog.TINGenericLocal, bc.Buyer.TIN)
	assert.Equal(t, catalog.IDSchemeNRIC, bc.Buyer.IDType)
	assert.Equal(t, catalog.NotApplicable, bc.Buyer.IDValue)
	assert.Equal(t, catalog.ClassConsolidated, bc.ItemClass)

	assert.Equal(t, "Klinik Pelanggan Sdn Bhd", bc.Buyer.Name, "la empresa tiene prioridad sobre el nombre")
	assert.Equal(t, "+60123456789", bc.Buyer.Phone, "teléfono de facturación inválido, se usa el de envío")
	assert.Equal(t, "Lot 5 Jalan 2", bc.Buyer.Address.Line1)
	assert.Equal(t, "10", bc.Buyer.Address.StateCode)
	assert.Equal(t, catalog.CountryMalaysia, bc.Buyer.Address.Country)
}

func TestMapOrder_LineasEnviosYComisiones(t *testing.T) {
	bc := billing.MapOrder(sampleOrder())

	require.Len(t, bc.Lines, 3, "el envío gratis no genera línea")
	assert.Equal(t, []string{"1", "2", "3"}, []string{bc.Lines[0].ID, bc.Lines[1].ID, bc.Lines[2].ID})

	assert.True(t, bc.Lines[0].UnitPrice.Equal(dec("33.33")), "precio unitario redondeado a 2 decimales")
	assert.True(t, bc.Lines[0].Quantity.Equal(dec("3")))
	assert.Equal(t, "Shipping", bc.Lines[1].Description)
	assert.Equal(t, "Fee", bc.Lines[2].Description)

	assert.True(t, bc.Total.Equal(dec("165")), "total = 100 + 10 + 55, obtenido %s", bc.Total)
	assert.True(t, bc.TaxAmount.Equal(dec("9.3")), "el impuesto del envío no cuenta, obtenido %s", bc.TaxAmount)
}

func TestMapOrder_CantidadCeroNoDivide(t *testing.T) {
	o := sampleOrder()
	o.Items[0].Quantity = decimal.Zero
	o.Items[0].Total = dec("12.50")

	bc := billing.MapOrder(o)
	assert.True(t, bc.Lines[0].UnitPrice.Equal(dec("12.50")))
}

func TestMapOrder_CompradorExtranjero(t *testing.T) {
	o := sampleOrder()
	o.Billing.Country = "SG"
	o.Billing.State = ""

	bc := billing.MapOrder(o)
	assert.Equal(t, catalog.TINGenericForeign, bc.Buyer.TIN)
	assert.Equal(t, catalog.IDSchemePassport, bc.Buyer.IDType)
	assert.Equal(t, catalog.ClassECommerce, bc.ItemClass)
	assert.Equal(t, "SGP", bc.Buyer.Address.Country)
}

func TestMapOrder_CompradorConTINValidado(t *testing.T) {
	o := sampleOrder()
	o.Buyer = entity.BuyerTIN{TIN: "IG12345678901", IDType: catalog.IDSchemeNRIC, IDValue: "900101105555"}

	bc := billing.MapOrder(o)
	assert.Equal(t, "IG12345678901", bc.Buyer.TIN)
	assert.Equal(t, "900101105555", bc.Buyer.IDValue)
	assert.Equal(t, catalog.ClassECommerce, bc.ItemClass)
}

func TestMapOrder_Respaldos(t *testing.T) {
	o := sampleOrder()
	o.Billing.Company = ""
	o.Billing.City = ""
	o.Shipping.Phone = ""

	bc := billing.MapOrder(o)
	assert.Equal(t, "Ali Bin Abu", bc.Buyer.Name)
	assert.Equal(t, "MY", bc.Buyer.Address.City, "sin ciudad se usa el país")
	assert.Equal(t, catalog.DefaultPhone, bc.Buyer.Phone)
}

func TestIsWalletPayment(t *testing.T) {
	assert.True(t, billing.IsWalletPayment("ShopeePay Wallet"))
	assert.True(t, billing.IsWalletPayment("wallet"))
	assert.False(t, billing.IsWalletPayment("card"))
}

func TestQueueDays(t *testing.T) {
	cases := []struct {
		circle string
		days   int
		ok     bool
	}{
		{"after_2_days", 2, true},
		{"after_7_days", 7, true},
		{"after_0_days", 0, false},
		{"after_8_days", 0, false},
		{"after_x_days", 0, false},
		{billing.CircleOnCompleted, 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.circle, func(t *testing.T) {
			cfg := billing.LifecycleConfig{BillingCircle: tc.circle}
			days, ok := cfg.QueueDays()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.days, days)
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// SubmitOrder / SubmitQueued
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitOrder_EnviaInmediato(t *testing.T) {
	env := billingtest.NewEnv(nil)

	rec, err := env.Lifecycle.SubmitOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, rec.Status)
	assert.Equal(t, int64(1001), rec.OrderRef)
	assert.Equal(t, []string{"1001"}, env.Transport.SubmittedNumbers())

	inv := payloadOf(t, rec).Child("Invoice")
	assert.Equal(t, "165.00", inv.PathValue("LegalMonetaryTotal", "PayableAmount"))
	assert.Len(t, inv.ChildrenNamed("InvoiceLine"), 3)
}

func TestSubmitOrder_YaEnviadoNoReenvia(t *testing.T) {
	env := billingtest.NewEnv(nil)
	env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "1001", Status: entity.StatusValid, RemoteID: "R-X"})

	rec, err := env.Lifecycle.SubmitOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusValid, rec.Status)
	assert.Empty(t, env.Transport.Submissions)
}

func TestSubmitOrder_WalletExcluido(t *testing.T) {
	env := billingtest.NewEnv(func(c *billing.LifecycleConfig) { c.ExcludeWallet = true })
	o := sampleOrder()
	o.PaymentMethod = "ShopeePay Wallet"

	_, err := env.Lifecycle.SubmitOrder(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrOrderSkipped)
	assert.Equal(t, 0, env.Ledger.Len(), "no se crea fila")
}

func TestSubmitOrder_EnColaYEnvioDiferido(t *testing.T) {
	env := billingtest.NewEnv(func(c *billing.LifecycleConfig) { c.BillingCircle = "after_2_days" })
	ctx := context.Background()
	require.NoError(t, env.Orders.Save(ctx, sampleOrder()))

	rec, err := env.Lifecycle.SubmitOrder(ctx, sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusQueued, rec.Status)
	assert.Equal(t, "q2100124", rec.QueueToken)
	require.NotNil(t, rec.QueueAt)
	assert.True(t, rec.QueueAt.Equal(env.Clock.Now()))
	assert.Empty(t, env.Transport.Submissions, "en cola no se envía")

	// Un segundo aviso del pedido conserva el token original.
	env.Clock.Advance(24 * time.Hour)
	again, err := env.Lifecycle.SubmitOrder(ctx, sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "q2100124", again.QueueToken)

	sent, err := env.Lifecycle.SubmitQueued(ctx, env.Ledger.Row("1001"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, sent.Status)
	assert.Empty(t, env.Ledger.Row("1001").QueueToken, "el token se limpia tras el envío")
}

func TestSubmitQueued_PedidoInexistenteConservaToken(t *testing.T) {
	env := billingtest.NewEnv(nil)
	rec := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "777", Status: entity.StatusQueued, QueueToken: "q1010124"})

	_, err := env.Lifecycle.SubmitQueued(context.Background(), rec)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "q1010124", env.Ledger.Row("777").QueueToken)
}

func TestSubmitQueued_FilaYaEnviadaSoloLimpia(t *testing.T) {
	env := billingtest.NewEnv(nil)
	rec := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "778", Status: entity.StatusSubmitted, RemoteID: "R-778", QueueToken: "q1010124"})

	out, err := env.Lifecycle.SubmitQueued(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, out.Status)
	assert.Empty(t, env.Ledger.Row("778").QueueToken)
	assert.Empty(t, env.Transport.Submissions)
}

func TestSubmitQueued_WalletLimpiaYOmite(t *testing.T) {
	env := billingtest.NewEnv(func(c *billing.LifecycleConfig) { c.ExcludeWallet = true })
	ctx := context.Background()
	o := sampleOrder()
	o.PaymentMethod = "wallet"
	require.NoError(t, env.Orders.Save(ctx, o))
	rec := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "1001", OrderRef: 1001, Status: entity.StatusQueued, QueueToken: "q1010124"})

	_, err := env.Lifecycle.SubmitQueued(ctx, rec)
	assert.ErrorIs(t, err, domain.ErrOrderSkipped)
	assert.Empty(t, env.Ledger.Row("1001").QueueToken)
}

// ──────────────────────────────────────────────────────────────────────────────
// Resubmit
// ──────────────────────────────────────────────────────────────────────────────

func TestResubmit_DesdeElPedido(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	require.NoError(t, env.Orders.Save(ctx, sampleOrder()))
	rec := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "1001", OrderRef: 1001, Status: entity.StatusRetry, RetryCount: 2})

	out, err := env.Lifecycle.Resubmit(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, out.Status)
	assert.Equal(t, 0, out.RetryCount)
	inv := payloadOf(t, out).Child("Invoice")
	assert.Equal(t, "165.00", inv.PathValue("LegalMonetaryTotal", "PayableAmount"))
}

func TestResubmit_DesdeElPayloadSinPedido(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	env.Transport.SubmitFn = func(string) (*myinvois.SubmitResult, error) {
		return &myinvois.SubmitResult{StatusCode: 500, Body: "error"}, nil
	}
	first, err := env.Lifecycle.Submit(ctx, invoiceContext("INV-7"), 0)
	require.NoError(t, err)
	require.Equal(t, entity.StatusRetry, first.Status)

	env.Transport.SubmitFn = nil
	out, err := env.Lifecycle.Resubmit(ctx, env.Ledger.Row("INV-7"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, out.Status)
	assert.Equal(t, "3569.00", payloadOf(t, out).Child("Invoice").PathValue("LegalMonetaryTotal", "PayableAmount"))
	assert.Equal(t, catalog.ClassConsolidated, out.ItemClass)
}

func TestResubmit_SinPedidoNiPayload(t *testing.T) {
	env := billingtest.NewEnv(nil)
	rec := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "999", Status: entity.StatusRetry})

	_, err := env.Lifecycle.Resubmit(context.Background(), rec)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, env.Transport.Submissions)
}

func TestResubmit_NotaConOriginalNoElegible(t *testing.T) {
	env := billingtest.NewEnv(nil)
	env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "55", Status: entity.StatusInvalid, RemoteID: "R-55"})
	rec := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "CN-55", Status: entity.StatusRetry})

	_, err := env.Lifecycle.Resubmit(context.Background(), rec)
	assert.ErrorIs(t, err, domain.ErrOriginalNotEligible)
}

func TestResubmit_PruebaConPayloadIlegible(t *testing.T) {
	env := billingtest.NewEnv(nil)
	rec := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "TEST-20240101-000000-ABCDEF", Status: entity.StatusRetry, Payload: "@@"})

	out, err := env.Lifecycle.Resubmit(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, out.Status)
	assert.Equal(t, "3569.00", payloadOf(t, out).Child("Invoice").PathValue("LegalMonetaryTotal", "PayableAmount"))
}

func TestResubmit_FilaYaEnviadaNoSeReenvia(t *testing.T) {
	env := billingtest.NewEnv(nil)
	ctx := context.Background()
	require.NoError(t, env.Orders.Save(ctx, sampleOrder()))
	stale := env.Ledger.Put(&entity.InvoiceRecord{DocumentNo: "1001", OrderRef: 1001, Status: entity.StatusRetry, RetryCount: 1})

	_, err := env.Lifecycle.Resubmit(ctx, stale)
	require.NoError(t, err)
	require.Len(t, env.Transport.Submissions, 1)

	_, err = env.Lifecycle.Resubmit(ctx, stale)
	require.ErrorIs(t, err, domain.ErrStatusChanged)
	assert.Len(t, env.Transport.Submissions, 1, "el documento aceptado no vuelve al API")
	assert.Equal(t, entity.StatusSubmitted, env.Ledger.Row("1001").Status)
}
