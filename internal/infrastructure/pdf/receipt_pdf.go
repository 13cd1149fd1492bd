// Package pdf genera el comprobante impreso de un documento validado por LHDN.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Vendedor + TIN       │  Tipo + N° + Fecha           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SUPPLIER / BUYER: identidad, dirección y contacto           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Qty | Description | Unit Price | Amount              │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal / Tax / TOTAL                             │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: UUID + Long ID + QR del enlace público               │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	appbilling "github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/myinvois"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ appbilling.ReceiptPDFGenerator = (*ReceiptGenerator)(nil)

// ReceiptGenerator implementa billing.ReceiptPDFGenerator usando Maroto v2.
type ReceiptGenerator struct{}

// NewReceiptGenerator construye el generador.
func NewReceiptGenerator() *ReceiptGenerator { return &ReceiptGenerator{} }

// GenerateReceiptPDF genera el PDF y devuelve sus bytes.
func (g *ReceiptGenerator) GenerateReceiptPDF(_ context.Context, d *appbilling.ReceiptData) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("pdf: sin datos del comprobante")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("e-Invoice "+d.DocumentNo, true).
		WithAuthor(d.Seller.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(d))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(partyRow("SUPPLIER", d.Seller))
	m.AddRows(partyRow("BUYER", d.Buyer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(d.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(d))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(validationFooterRows(d)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: vendedor + TIN (izq) y tipo, número y fecha (der).
func headerRow(d *appbilling.ReceiptData) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(d.Seller.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("TIN: "+d.Seller.TIN, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(strings.ToUpper("e-Invoice · "+d.Kind), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(d.DocumentNo, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Date: "+d.IssuedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// partyRow: identidad, dirección y contacto de vendedor o comprador.
func partyRow(title string, p myinvois.Party) core.Row {
	return row.New(18).Add(
		col.New(12).Add(
			text.New(title, props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(p.Name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 5,
			}),
			text.New(fmt.Sprintf("TIN: %s   |   %s: %s   |   Tel: %s   |   Email: %s",
				nonEmpty(p.TIN, "-"),
				nonEmpty(p.IDType, "ID"),
				nonEmpty(p.IDValue, "-"),
				nonEmpty(p.Phone, "-"),
				nonEmpty(p.Email, "-"),
			), props.Text{Size: 8, Top: 10, Color: colorGray}),
			text.New(addressLine(p.Address), props.Text{Size: 8, Top: 14, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de líneas.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).WithStyle(&props.Cell{BackgroundColor: colorPrimary}).Add(
		h("Qty", 1, align.Center),
		h("Description", 6, align.Left),
		h("Unit Price", 2, align.Right),
		h("Amount", 3, align.Right),
	)
}

// tableDetailRows: una fila por línea.
func tableDetailRows(lines []appbilling.ReceiptLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				l.Quantity.String(),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(6).Add(text.New(
				l.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				FormatMoney(l.UnitPrice),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(3).Add(text.New(
				FormatMoney(l.Total),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: subtotal, impuesto y total alineados a la derecha.
func totalsRow(d *appbilling.ReceiptData) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top,
		})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	grand := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1, Top: top,
		})
	}

	return row.New(20).Add(
		col.New(6),
		col.New(3).Add(
			label("Subtotal:", 1),
			label("Tax:", 7),
			grand("TOTAL:", 13),
		),
		col.New(3).Add(
			value(FormatMoney(d.Total.Sub(d.TaxAmount)), 1),
			value(FormatMoney(d.TaxAmount), 7),
			grand(FormatMoney(d.Total), 13),
		),
	)
}

// validationFooterRows: UUID, Long ID y QR del enlace público.
func validationFooterRows(d *appbilling.ReceiptData) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("LHDN VALIDATION", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New("UUID: "+d.RemoteID, props.Text{Size: 7, Top: 1}),
		)),
	}
	for _, chunk := range splitEvery("Long ID: "+d.LongID, 90) {
		rows = append(rows, row.New(4).Add(col.New(12).Add(
			text.New(chunk, props.Text{Size: 6.5, Color: colorGray, Top: 0.5}),
		)))
	}
	rows = append(rows, row.New(3))

	if d.ShareURL != "" {
		rows = append(rows, row.New(45).Add(
			col.New(4).Add(code.NewQr(d.ShareURL, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Scan the QR code to verify this document\non the MyInvois portal.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New(d.ShareURL, props.Text{
					Size: 6.5, Top: 16, Left: 3, Color: colorPrimary,
				}),
			),
		))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New(
			"This document is a visual representation of an e-Invoice validated by "+
				"the Inland Revenue Board of Malaysia (LHDN).",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	)))
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func addressLine(a myinvois.PartyAddress) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Line1, strings.TrimSpace(a.Postcode + " " + a.City), a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// FormatMoney formatea en ringgit con separador de miles.
// Ej: 1234.5 → "RM 1,234.50", -20 → "RM -20.00".
func FormatMoney(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return "RM " + sign + string(buf) + frac
}

// splitEvery divide s en trozos de max n caracteres.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
