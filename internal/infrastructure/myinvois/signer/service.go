// Firma XAdES enveloped del documento MyInvois (UBL 1.1).
// Calcula el digest de SignedProperties, firma SignedInfo con RSA-SHA256 e
// inyecta el bloque en el marcador UBLExtensions/.../Signature.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
	catalog "github.com/tikusl4ju/myinvoice-sync/pkg/myinvois"
)

// Service firma documentos con el material del certificado activo.
type Service struct {
	now func() time.Time
}

// NewService crea el servicio con el reloj del sistema.
func NewService() *Service {
	return &Service{now: time.Now}
}

// WithClock fija el reloj usado para SigningTime (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Signature resultado de firmar, útil para logs y auditoría.
type Signature struct {
	SigningTime      string
	PropertiesDigest string
	Value            string
}

// Sign firma el documento y reemplaza el marcador de firma por el bloque completo.
func (s *Service) Sign(doc *document.Node, m *Material) (*Signature, error) {
	if m == nil || m.Key == nil || m.Cert == nil {
		return nil, fmt.Errorf("signer: material incompleto")
	}
	sigInfo := doc.Path(append([]string{"Invoice"}, signaturePath[:len(signaturePath)-1]...)...)
	if sigInfo == nil {
		return nil, fmt.Errorf("signer: el documento no tiene marcador de firma")
	}

	// ═══ 1. SignedProperties ═══
	issuer, serial := IssuerSerial(m.Cert)
	signingTime := s.now().UTC().Format(signingTimeLayout)
	props := signedProperties(signingTime, CertDigest(m.Cert), issuer, serial)

	// ═══ 2. Digest de SignedProperties canonicalizado ═══
	propsDigest, err := digestOf(props)
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar SignedProperties: %w", err)
	}

	// ═══ 3. SignedInfo ═══
	si := signedInfo(propsDigest)

	// ═══ 4. Firma RSA-SHA256 sobre SignedInfo canonicalizado ═══
	canonicalInfo, err := canonical(si)
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar SignedInfo: %w", err)
	}
	hash := sha256.Sum256(canonicalInfo)
	raw, err := rsa.SignPKCS1v15(nil, m.Key, crypto.SHA256, hash[:])
	if err != nil {
		return nil, fmt.Errorf("signer: firmar SignedInfo: %w", err)
	}
	value := base64.StdEncoding.EncodeToString(raw)

	// ═══ 5. Inyección en el documento ═══
	sigInfo.Replace(document.New("Signature",
		si.node(),
		document.Text("SignatureValue", value),
		document.New("KeyInfo",
			document.New("X509Data",
				document.Text("X509Certificate", base64.StdEncoding.EncodeToString(m.Cert.Raw)),
			),
		),
		document.New("Object",
			document.New("QualifyingProperties", props.node()).Attr("Target", SignatureID),
		),
	).Attr("Id", SignatureID))

	return &Signature{SigningTime: signingTime, PropertiesDigest: propsDigest, Value: value}, nil
}

// Strip quita la extensión y el bloque de firma y marca el documento como
// UBL 1.0 (sin firma).
func Strip(doc *document.Node) {
	inv := doc.Child("Invoice")
	if inv == nil {
		return
	}
	inv.Remove("UBLExtensions")
	inv.Remove("Signature")
	if code := inv.Child("InvoiceTypeCode"); code != nil {
		code.Attr("listVersionID", catalog.UBLVersionUnsigned)
	}
}

// ── Modelo XML intermedio ────────────────────────────────────────────────────

// xel describe un elemento del bloque firmado. Se renderiza a XML (para
// canonicalizar) y a document.Node (para inyectar) desde la misma fuente.
type xel struct {
	name     string
	attrs    map[string]string
	text     string
	hasText  bool
	children []*xel
}

func el(name string, children ...*xel) *xel { return &xel{name: name, children: children} }

func leaf(name, text string) *xel { return &xel{name: name, text: text, hasText: true} }

func (x *xel) attr(k, v string) *xel {
	if x.attrs == nil {
		x.attrs = map[string]string{}
	}
	x.attrs[k] = v
	return x
}

func signedProperties(signingTime, certDigest, issuer, serial string) *xel {
	return el("SignedProperties",
		el("SignedSignatureProperties",
			leaf("SigningTime", signingTime),
			el("SigningCertificate",
				el("Cert",
					el("CertDigest",
						el("DigestMethod").attr("Algorithm", AlgSHA256),
						leaf("DigestValue", certDigest),
					),
					el("IssuerSerial",
						leaf("X509IssuerName", issuer),
						leaf("X509SerialNumber", serial),
					),
				),
			),
		),
	).attr("Id", SignedPropsID)
}

func signedInfo(propsDigest string) *xel {
	return el("SignedInfo",
		el("CanonicalizationMethod").attr("Algorithm", AlgC14N),
		el("SignatureMethod").attr("Algorithm", AlgRSASHA256),
		el("Reference",
			el("DigestMethod").attr("Algorithm", AlgSHA256),
			leaf("DigestValue", propsDigest),
		).attr("Type", TypeSignedProperties).attr("URI", "#"+SignedPropsID),
	)
}

func (x *xel) node() *document.Node {
	var n *document.Node
	if x.hasText {
		n = document.Text(x.name, x.text)
	} else {
		n = document.New(x.name)
	}
	for k, v := range x.attrs {
		n.Attr(k, v)
	}
	for _, c := range x.children {
		n.Add(c.node())
	}
	return n
}

// fromNode reconstruye el modelo desde el bloque inyectado (verificación).
// La forma JSON no conserva el orden entre hermanos de distinto nombre, así
// que se restablece el orden del esquema XMLDSig/XAdES.
func fromNode(n *document.Node) *xel {
	x := &xel{name: n.Name, text: n.Value(), hasText: n.HasValue()}
	for k, v := range n.Attrs {
		x.attr(k, v)
	}
	for _, c := range n.Children {
		x.children = append(x.children, fromNode(c))
	}
	sort.SliceStable(x.children, func(i, j int) bool {
		return schemaRank[x.children[i].name] < schemaRank[x.children[j].name]
	})
	return x
}

// render produce el XML con prefijos ds:/xades:. Cada namespace se declara en
// el primer elemento que lo usa sin tenerlo en alcance, de modo que la forma
// canónica inclusiva y la exclusiva coinciden.
func (x *xel) render() ([]byte, error) {
	doc := etree.NewDocument()
	x.appendTo(&doc.Element, map[string]bool{})
	return doc.WriteToBytes()
}

func (x *xel) appendTo(parent *etree.Element, inScope map[string]bool) {
	prefix, ns := "xades", NamespaceXAdES
	if dsElements[x.name] {
		prefix, ns = "ds", NamespaceDS
	}
	e := parent.CreateElement(prefix + ":" + x.name)
	scope := inScope
	if !inScope[prefix] {
		e.CreateAttr("xmlns:"+prefix, ns)
		scope = make(map[string]bool, len(inScope)+1)
		for k := range inScope {
			scope[k] = true
		}
		scope[prefix] = true
	}
	keys := make([]string, 0, len(x.attrs))
	for k := range x.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.CreateAttr(k, x.attrs[k])
	}
	if x.hasText {
		e.SetText(x.text)
	}
	for _, c := range x.children {
		c.appendTo(e, scope)
	}
}

func canonical(x *xel) ([]byte, error) {
	raw, err := x.render()
	if err != nil {
		return nil, err
	}
	return canonicalizeXML(raw)
}

func digestOf(x *xel) (string, error) {
	c, err := canonical(x)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(c)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}
