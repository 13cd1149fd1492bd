package pdf_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbilling "github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/pdf"
)

// ─────────────────────────────────────────────────────────────────────────────
// Comprobante
// ─────────────────────────────────────────────────────────────────────────────

func receiptData() *appbilling.ReceiptData {
	return &appbilling.ReceiptData{
		DocumentNo: "INV-1001",
		Kind:       "Invoice",
		RemoteID:   "F9D425P6DS7D8IU",
		LongID:     "YQH73576FY9VR57B7BD5BPFDB2W7UHD5FLA6XQHZ",
		IssuedAt:   time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC),
		Seller: myinvois.Party{
			TIN:  "C1234567890",
			Name: "Klinik Contoh Sdn Bhd",
			Address: myinvois.PartyAddress{
				Line1: "Jalan 1", City: "Shah Alam", Postcode: "40000", StateCode: "10", Country: "MYS",
			},
		},
		Buyer: myinvois.Party{
			TIN:   "EI00000000010",
			Name:  "Ali bin Abu",
			Phone: "60123456789",
		},
		Lines: []appbilling.ReceiptLine{
			{
				Description: "Consulta",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromInt(50),
				Total:       decimal.NewFromInt(100),
			},
		},
		Total:     decimal.NewFromInt(106),
		TaxAmount: decimal.NewFromInt(6),
		ShareURL:  "https://preprod.myinvois.hasil.gov.my/F9D425P6DS7D8IU/share/YQH73576FY9VR57B7BD5BPFDB2W7UHD5FLA6XQHZ",
	}
}

func TestGenerateReceiptPDF_DevuelvePDFValido(t *testing.T) {
	g := pdf.NewReceiptGenerator()

	out, err := g.GenerateReceiptPDF(context.Background(), receiptData())

	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateReceiptPDF_SinEnlacePublicoOmiteQR(t *testing.T) {
	d := receiptData()
	d.ShareURL = ""
	d.Lines = nil

	out, err := pdf.NewReceiptGenerator().GenerateReceiptPDF(context.Background(), d)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateReceiptPDF_SinDatosFalla(t *testing.T) {
	_, err := pdf.NewReceiptGenerator().GenerateReceiptPDF(context.Background(), nil)
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// FormatMoney
// ─────────────────────────────────────────────────────────────────────────────

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "RM 0.00"},
		{"5.5", "RM 5.50"},
		{"1234.5", "RM 1,234.50"},
		{"1000000", "RM 1,000,000.00"},
		{"-20", "RM -20.00"},
		{"999.999", "RM 1,000.00"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, pdf.FormatMoney(decimal.RequireFromString(tc.in)))
		})
	}
}
