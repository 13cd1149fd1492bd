package myinvois

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

var hundred = decimal.NewFromInt(100)

// UBLBuilder construye el árbol del documento a partir del BuildContext.
// Es una transformación pura: no consulta ajustes ni reloj.
type UBLBuilder struct{}

// NewUBLBuilder crea el builder.
func NewUBLBuilder() *UBLBuilder { return &UBLBuilder{} }

// BuyerIdentity esquema, valor de ID y clasificación resueltos para el comprador.
type BuyerIdentity struct {
	Scheme    string
	Value     string
	ItemClass string
}

// ResolveBuyerIdentity aplica la política de ID por defecto del comprador:
// par explícito > TIN genérico extranjero > TIN genérico local > NRIC/NA.
func ResolveBuyerIdentity(buyer Party, itemClass string) BuyerIdentity {
	var id BuyerIdentity
	switch {
	case buyer.IDType != "" && buyer.IDValue != "":
		id = BuyerIdentity{Scheme: buyer.IDType, Value: buyer.IDValue, ItemClass: orDefault(itemClass, catalog.ClassECommerce)}
	case buyer.TIN == catalog.TINGenericForeign:
		id = BuyerIdentity{Scheme: catalog.IDSchemePassport, Value: catalog.PlaceholderPassport, ItemClass: catalog.ClassECommerce}
	case buyer.TIN == catalog.TINGenericLocal:
		id = BuyerIdentity{Scheme: catalog.IDSchemeNRIC, Value: catalog.NotApplicable, ItemClass: catalog.ClassConsolidated}
	default:
		id = BuyerIdentity{Scheme: catalog.IDSchemeNRIC, Value: catalog.NotApplicable, ItemClass: orDefault(itemClass, catalog.ClassConsolidated)}
	}
	if id.Value == "" {
		id.Value = catalog.NotApplicable
	}
	return id
}

// TaxRate devuelve tax / (total - tax) * 100, o 0 si la base no es positiva.
func TaxRate(total, tax decimal.Decimal) decimal.Decimal {
	base := total.Sub(tax)
	if !base.IsPositive() {
		return decimal.Zero
	}
	return tax.Div(base).Mul(hundred)
}

// Build arma el documento completo con los marcadores de firma incluidos.
// El firmador los rellena o los quita según el modo de firma.
func (b *UBLBuilder) Build(bc *BuildContext) (*document.Node, error) {
	if bc == nil || bc.DocumentNo == "" {
		return nil, fmt.Errorf("myinvois: falta número de documento")
	}
	if len(bc.Lines) == 0 {
		return nil, fmt.Errorf("myinvois: documento %s sin líneas", bc.DocumentNo)
	}
	if (bc.Kind == entity.KindCreditNote || bc.Kind == entity.KindRefundNote) && bc.Reference == nil {
		return nil, fmt.Errorf("myinvois: %s requiere referencia a la factura original", bc.Kind)
	}

	buyerID := ResolveBuyerIdentity(bc.Buyer, bc.ItemClass)
	taxCategory := orDefault(bc.TaxCategoryID, catalog.TaxCategoryExempt)
	industry := orDefault(bc.Industry, catalog.DefaultMSIC)
	subtotal := bc.Total.Sub(bc.TaxAmount)
	issued := bc.IssuedAt.UTC()

	inv := document.New("Invoice",
		ublExtensionsPlaceholder(),
		signaturePlaceholder(),
		document.Text("InvoiceTypeCode", typeCode(bc.Kind)).Attr("listVersionID", orDefault(bc.UBLVersion, catalog.UBLVersionUnsigned)),
		document.Text("ID", bc.DocumentNo),
		document.Text("IssueDate", issued.Format("2006-01-02")),
		document.Text("IssueTime", issued.Format("15:04:05")+"Z"),
		document.Text("DocumentCurrencyCode", catalog.Currency),
	)

	if bc.Reference != nil && (bc.Kind == entity.KindCreditNote || bc.Kind == entity.KindRefundNote) {
		inv.Add(document.New("BillingReference",
			document.New("InvoiceDocumentReference",
				document.Text("ID", bc.Reference.DocumentNo),
				document.Text("UUID", bc.Reference.RemoteID),
			),
		))
	}

	inv.Add(
		supplierParty(bc.Seller, industry),
		customerParty(bc.Buyer, buyerID),
	)
	for _, l := range bc.Lines {
		inv.Add(invoiceLine(l, buyerID.ItemClass, taxCategory, bc.TaxAmount))
	}
	inv.Add(
		document.New("LegalMonetaryTotal",
			amount("LineExtensionAmount", bc.Total),
			amount("TaxExclusiveAmount", subtotal),
			amount("TaxInclusiveAmount", bc.Total.Add(bc.TaxAmount)),
			amount("PayableAmount", bc.Total),
		),
		document.New("TaxTotal",
			amount("TaxAmount", bc.TaxAmount),
			document.New("TaxSubtotal",
				amount("TaxableAmount", subtotal),
				amount("TaxAmount", bc.TaxAmount),
				taxCategoryNode(taxCategory, TaxRate(bc.Total, bc.TaxAmount)),
			),
		),
	)

	return document.New("").
		Attr("_D", catalog.URNInvoiceSchema).
		Attr("_A", catalog.URNAggregateSchema).
		Attr("_B", catalog.URNBasicSchema).
		Add(inv), nil
}

// ── Partes ─────────────────────────────────────────────────────────────────

func supplierParty(s Party, industry string) *document.Node {
	return document.New("AccountingSupplierParty",
		document.New("Party",
			document.Text("IndustryClassificationCode", industry).Attr("name", catalog.MSICDescription(industry)),
			partyID(s.TIN, catalog.SchemeTIN),
			partyID(orDefault(s.SST, catalog.NotApplicable), catalog.SchemeSST),
			partyID(orDefault(s.TTX, catalog.NotApplicable), catalog.SchemeTTX),
			partyID(s.IDValue, s.IDType),
			postalAddress(s.Address),
			legalEntity(s.Name),
			contact(s.Phone, s.Email),
		),
	)
}

func customerParty(c Party, id BuyerIdentity) *document.Node {
	return document.New("AccountingCustomerParty",
		document.New("Party",
			partyID(c.TIN, catalog.SchemeTIN),
			partyID(id.Value, id.Scheme),
			partyID(catalog.NotApplicable, catalog.SchemeSST),
			partyID(catalog.NotApplicable, catalog.SchemeTTX),
			postalAddress(c.Address),
			legalEntity(c.Name),
			contact(c.Phone, c.Email),
		),
	)
}

func partyID(value, scheme string) *document.Node {
	return document.New("PartyIdentification", document.Text("ID", value).Attr("schemeID", scheme))
}

func postalAddress(a PartyAddress) *document.Node {
	return document.New("PostalAddress",
		document.Text("CityName", a.City),
		document.Text("PostalZone", a.Postcode),
		document.Text("CountrySubentityCode", a.StateCode),
		document.New("AddressLine", document.Text("Line", catalog.TruncateAddress(a.Line1))),
		document.New("Country",
			document.Text("IdentificationCode", a.Country).
				Attr("listID", catalog.CountryListID).
				Attr("listAgencyID", catalog.CountryAgencyID),
		),
	)
}

func legalEntity(name string) *document.Node {
	return document.New("PartyLegalEntity", document.Text("RegistrationName", name))
}

func contact(phone, email string) *document.Node {
	return document.New("Contact",
		document.Text("Telephone", phone),
		document.Text("ElectronicMail", email),
	)
}

// ── Líneas ─────────────────────────────────────────────────────────────────

// invoiceLine arma una línea. Con categoría exenta el impuesto de línea es 0
// aunque el documento tenga impuesto.
func invoiceLine(l Line, itemClass, taxCategory string, docTax decimal.Decimal) *document.Node {
	lineTotal := l.Total()
	lineTax := docTax
	if taxCategory == catalog.TaxCategoryExempt {
		lineTax = decimal.Zero
	}
	return document.New("InvoiceLine",
		document.Text("ID", l.ID),
		document.Number("InvoicedQuantity", l.Quantity.String()).Attr("unitCode", catalog.UnitCodePiece),
		amount("LineExtensionAmount", lineTotal),
		document.New("TaxTotal",
			amount("TaxAmount", lineTax),
			document.New("TaxSubtotal",
				amount("TaxableAmount", lineTotal),
				amount("TaxAmount", lineTax),
				taxCategoryNode(taxCategory, decimal.Zero),
			),
		),
		document.New("Item",
			document.New("CommodityClassification",
				document.Text("ItemClassificationCode", itemClass).Attr("listID", catalog.ItemClassListID),
			),
			document.Text("Description", l.Description),
			document.New("OriginCountry", document.Text("IdentificationCode", catalog.CountryMalaysia)),
		),
		document.New("Price", amount("PriceAmount", l.UnitPrice)),
		document.New("ItemPriceExtension", amount("Amount", lineTotal)),
	)
}

func taxCategoryNode(id string, percent decimal.Decimal) *document.Node {
	n := document.New("TaxCategory",
		document.Text("ID", id),
		document.Number("Percent", percent.StringFixed(2)),
		document.New("TaxScheme",
			document.Text("ID", catalog.TaxSchemeID).
				Attr("schemeID", catalog.TaxSchemeIDScheme).
				Attr("schemeAgencyID", catalog.TaxSchemeAgency),
		),
	)
	if id == catalog.TaxCategoryExempt {
		n.Add(document.Text("TaxExemptionReason", catalog.TaxExemptionReason))
	}
	return n
}

func amount(name string, d decimal.Decimal) *document.Node {
	return document.Number(name, Money(d)).Attr("currencyID", catalog.Currency)
}

// Money formatea un importe con dos decimales.
func Money(d decimal.Decimal) string { return d.Round(2).StringFixed(2) }

// ── Marcadores de firma ──────────────────────────────────────────────────────

func ublExtensionsPlaceholder() *document.Node {
	return document.New("UBLExtensions",
		document.New("UBLExtension",
			document.Text("ExtensionURI", catalog.URNEnvelopedXAdES),
			document.New("ExtensionContent",
				document.New("UBLDocumentSignatures",
					document.New("SignatureInformation",
						document.Text("ID", catalog.URNSignatureInfoID),
						document.Text("ReferencedSignatureID", catalog.URNInvoiceSignatureID),
						emptySignature(),
					),
				),
			),
		),
	)
}

// emptySignature es el esqueleto vacío que el firmador reemplaza.
func emptySignature() *document.Node {
	return document.New("Signature",
		document.Text("SignatureValue", ""),
		document.New("SignedInfo",
			document.Text("SignatureMethod", "").Attr("Algorithm", ""),
			document.New("Reference",
				document.Text("DigestMethod", "").Attr("Algorithm", ""),
				document.Text("DigestValue", ""),
			).Attr("Type", "").Attr("URI", "#id-xades-signed-props"),
		),
		document.New("KeyInfo",
			document.New("X509Data",
				document.Text("X509Certificate", ""),
				document.Text("X509SubjectName", ""),
			),
		),
	).Attr("Id", "signature")
}

func signaturePlaceholder() *document.Node {
	return document.New("Signature",
		document.Text("ID", catalog.URNInvoiceSignatureID),
		document.Text("SignatureMethod", catalog.URNEnvelopedXAdES),
	)
}

func typeCode(kind entity.DocumentKind) string {
	switch kind {
	case entity.KindCreditNote:
		return catalog.DocTypeCreditNote
	case entity.KindRefundNote:
		return catalog.DocTypeRefundNote
	}
	return catalog.DocTypeInvoice
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
