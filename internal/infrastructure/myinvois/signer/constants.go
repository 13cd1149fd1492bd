// Constantes de la firma XAdES enveloped que exige MyInvois (UBL 1.1).

package signer

// Namespaces y algoritmos XMLDSig / XAdES.
const (
	NamespaceDS    = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"

	AlgC14N      = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"

	TypeSignedProperties = "http://uri.etsi.org/01903/v1.3.2#SignedProperties"
)

// Identificadores fijos dentro del bloque de firma.
const (
	SignatureID       = "signature"
	SignedPropsID     = "id-xades-signed-props"
	signingTimeLayout = "2006-01-02T15:04:05Z"
)

// Ruta del marcador de firma dentro de Invoice.
var signaturePath = []string{"UBLExtensions", "UBLExtension", "ExtensionContent", "UBLDocumentSignatures", "SignatureInformation", "Signature"}

// Elementos que van con prefijo ds:. El resto del bloque firmado usa xades:.
var dsElements = map[string]bool{
	"SignedInfo":             true,
	"CanonicalizationMethod": true,
	"SignatureMethod":        true,
	"Reference":              true,
	"DigestMethod":           true,
	"DigestValue":            true,
	"X509IssuerName":         true,
	"X509SerialNumber":       true,
}

// Posición de cada elemento entre sus hermanos según el esquema XMLDSig/XAdES.
var schemaRank = map[string]int{
	"CanonicalizationMethod": 0,
	"SignatureMethod":        1,
	"Reference":              2,
	"DigestMethod":           0,
	"DigestValue":            1,
	"SigningTime":            0,
	"SigningCertificate":     1,
	"CertDigest":             0,
	"IssuerSerial":           1,
	"X509IssuerName":         0,
	"X509SerialNumber":       1,
}
