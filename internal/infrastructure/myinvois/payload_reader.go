package myinvois

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// ReadPayload recupera comprador, líneas, totales y clasificación de un
// documento ya enviado (payload base64 canónico). Se usa cuando el pedido
// original no está disponible. El resto del BuildContext lo completa el llamador.
func ReadPayload(payload string) (*BuildContext, error) {
	root, err := document.ParseBase64(payload)
	if err != nil {
		return nil, err
	}
	return ReadDocument(root)
}

// ReadDocument hace lo mismo que ReadPayload sobre un árbol ya parseado.
func ReadDocument(root *document.Node) (*BuildContext, error) {
	inv := root.Child("Invoice")
	if inv == nil {
		return nil, fmt.Errorf("payload: falta Invoice")
	}
	party := inv.Path("AccountingCustomerParty", "Party")
	if party == nil {
		return nil, fmt.Errorf("payload: falta AccountingCustomerParty")
	}

	bc := &BuildContext{
		Buyer:         readParty(party),
		TaxCategoryID: inv.PathValue("TaxTotal", "TaxSubtotal", "TaxCategory", "ID"),
	}

	var err error
	if bc.Total, err = readDecimal(inv, "LegalMonetaryTotal", "PayableAmount"); err != nil {
		return nil, err
	}
	if bc.TaxAmount, err = readDecimal(inv, "TaxTotal", "TaxAmount"); err != nil {
		return nil, err
	}

	for i, ln := range inv.ChildrenNamed("InvoiceLine") {
		qty, err := readDecimal(ln, "InvoicedQuantity")
		if err != nil {
			return nil, fmt.Errorf("payload: línea %d: %w", i+1, err)
		}
		price, err := readDecimal(ln, "Price", "PriceAmount")
		if err != nil {
			return nil, fmt.Errorf("payload: línea %d: %w", i+1, err)
		}
		bc.Lines = append(bc.Lines, Line{
			ID:          ln.PathValue("ID"),
			Quantity:    qty,
			UnitPrice:   price,
			Description: ln.PathValue("Item", "Description"),
		})
		if bc.ItemClass == "" {
			bc.ItemClass = ln.PathValue("Item", "CommodityClassification", "ItemClassificationCode")
		}
	}
	if len(bc.Lines) == 0 {
		return nil, fmt.Errorf("payload: sin líneas")
	}
	return bc, nil
}

func readParty(party *document.Node) Party {
	p := Party{
		Name:  party.PathValue("PartyLegalEntity", "RegistrationName"),
		Phone: party.PathValue("Contact", "Telephone"),
		Email: party.PathValue("Contact", "ElectronicMail"),
		Address: PartyAddress{
			Line1:     party.PathValue("PostalAddress", "AddressLine", "Line"),
			City:      party.PathValue("PostalAddress", "CityName"),
			Postcode:  party.PathValue("PostalAddress", "PostalZone"),
			StateCode: party.PathValue("PostalAddress", "CountrySubentityCode"),
			Country:   party.PathValue("PostalAddress", "Country", "IdentificationCode"),
		},
	}
	for _, pid := range party.ChildrenNamed("PartyIdentification") {
		id := pid.Child("ID")
		if id == nil {
			continue
		}
		switch scheme := id.Attrs["schemeID"]; scheme {
		case catalog.SchemeTIN:
			p.TIN = id.Value()
		case catalog.SchemeSST, catalog.SchemeTTX:
		default:
			p.IDType, p.IDValue = scheme, id.Value()
		}
	}
	return p
}

func readDecimal(n *document.Node, path ...string) (decimal.Decimal, error) {
	raw := n.PathValue(path...)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("payload: falta %v", path)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("payload: %v: %w", path, err)
	}
	return d, nil
}
