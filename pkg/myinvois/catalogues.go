// Package myinvois contiene catálogos y utilidades alineados a la
// documentación del SDK MyInvois (LHDN, Malasia).
package myinvois

// =============================================================================
// Tipos de documento (e-Invoice Types, codes 01..04)
// =============================================================================

const (
	DocTypeInvoice    = "01" // Invoice (también documentos de prueba)
	DocTypeCreditNote = "02" // Credit Note
	DocTypeDebitNote  = "03" // Debit Note (no emitido por este servicio)
	DocTypeRefundNote = "04" // Refund Note
)

// =============================================================================
// Versiones UBL. 1.1 exige firma digital; 1.0 se envía sin firma.
// =============================================================================

const (
	UBLVersionUnsigned = "1.0"
	UBLVersionSigned   = "1.1"
)

// ValidUBLVersions versiones aceptadas para el modo de firma.
var ValidUBLVersions = map[string]bool{UBLVersionUnsigned: true, UBLVersionSigned: true}

// =============================================================================
// TIN genéricos (comprador sin TIN propio)
// =============================================================================

const (
	TINGenericLocal   = "EI00000000010" // Comprador local sin TIN (factura consolidada)
	TINGenericForeign = "EI00000000020" // Comprador extranjero
)

// =============================================================================
// Esquemas de identificación del comprador/vendedor
// =============================================================================

const (
	IDSchemeNRIC     = "NRIC"
	IDSchemePassport = "PASSPORT"
	IDSchemeBRN      = "BRN"
	IDSchemeArmy     = "ARMY"

	SchemeTIN = "TIN"
	SchemeSST = "SST"
	SchemeTTX = "TTX"

	// Marcador obligatorio cuando no hay valor.
	NotApplicable = "NA"
	// ID de pasaporte genérico para compradores extranjeros.
	PlaceholderPassport = "P12345678"
)

// ValidIDSchemes esquemas aceptados por el endpoint de validación de TIN.
var ValidIDSchemes = map[string]bool{
	IDSchemeNRIC: true, IDSchemePassport: true, IDSchemeBRN: true, IDSchemeArmy: true,
}

// =============================================================================
// Clasificación de ítems (Classification Codes)
// =============================================================================

const (
	ClassConsolidated = "004" // Consolidated e-Invoice
	ClassECommerce    = "008" // e-Commerce - e-Invoice to buyer / purchaser
)

// =============================================================================
// Impuestos (Tax Types)
// =============================================================================

const (
	TaxCategoryExempt = "E" // Tax exemption
	TaxCategoryNA     = "06"

	TaxSchemeID       = "OTH"
	TaxSchemeIDScheme = "UN/ECE 5153"
	TaxSchemeAgency   = "6"

	TaxExemptionReason = "Goods Exempted Under Malaysian Tax"
)

// Valores fijos del documento.
const (
	Currency        = "MYR"
	UnitCodePiece   = "C62"
	CountryMalaysia = "MYS"
	CountryListID   = "ISO3166-1"
	CountryAgencyID = "6"
	ItemClassListID = "CLASS"

	DefaultPhone = "60123456789"
	DefaultMSIC  = "86909"
)

// URNs fijas de la extensión de firma UBL.
const (
	URNInvoiceSchema   = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	URNAggregateSchema = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	URNBasicSchema     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"

	URNEnvelopedXAdES     = "urn:oasis:names:specification:ubl:dsig:enveloped:xades"
	URNSignatureInfoID    = "urn:oasis:names:specification:ubl:signature:1"
	URNInvoiceSignatureID = "urn:oasis:names:specification:ubl:signature:Invoice"
)

// =============================================================================
// Estados (State Codes). La tienda usa códigos propios; se mapean al código LHDN.
// =============================================================================

const StateNotApplicable = "17"

var storeStateCodes = map[string]string{
	"JHR": "01", // Johor
	"KDH": "02", // Kedah
	"KTN": "03", // Kelantan
	"MLK": "04", // Melaka
	"NSN": "05", // Negeri Sembilan
	"PHG": "06", // Pahang
	"PNG": "07", // Pulau Pinang
	"PRK": "08", // Perak
	"PLS": "09", // Perlis
	"SGR": "10", // Selangor
	"TRG": "11", // Terengganu
	"SBH": "12", // Sabah
	"SWK": "13", // Sarawak
	"KUL": "14", // Wilayah Persekutuan Kuala Lumpur
	"WP":  "14",
	"LBN": "15", // Wilayah Persekutuan Labuan
	"PJY": "16", // Wilayah Persekutuan Putrajaya
}

// StateCode convierte el código de estado de la tienda al código LHDN.
// Los códigos de dos dígitos ya válidos se devuelven tal cual; lo demás es "17".
func StateCode(store string) string {
	if c, ok := storeStateCodes[store]; ok {
		return c
	}
	for _, c := range storeStateCodes {
		if c == store {
			return store
		}
	}
	return StateNotApplicable
}

// =============================================================================
// MSIC (Malaysia Standard Industrial Classification). Subconjunto usado por
// los comercios típicos; el nombre viaja como atributo del código.
// =============================================================================

var msicDescriptions = map[string]string{
	"00000": "NOT APPLICABLE",
	"46510": "Wholesale of computer hardware, software and peripherals",
	"47111": "Provision stores",
	"47190": "Other retail sale in non-specialized stores",
	"47412": "Retail sale of computer hardware, software and peripherals",
	"47914": "Retail sale of any kind of product over the internet",
	"56101": "Restaurants and restaurant cum night clubs",
	"62010": "Computer programming activities",
	"62021": "Computer consultancy",
	"63120": "Web portals",
	"70209": "Other management consultancy activities n.e.c",
	"85419": "Other education n.e.c",
	"86201": "General medical services",
	"86909": "Other human health activities n.e.c.",
	"96099": "Other service activities n.e.c.",
}

// MSICDescription devuelve la descripción del código MSIC (vacío si no se conoce).
func MSICDescription(code string) string { return msicDescriptions[code] }

// MSICCodes devuelve una copia del catálogo conocido.
func MSICCodes() map[string]string {
	out := make(map[string]string, len(msicDescriptions))
	for k, v := range msicDescriptions {
		out[k] = v
	}
	return out
}
