// Package signertest genera certificados autofirmados para tests.
package signertest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"
)

// Bundle PEM con llave RSA y certificado, más sus piezas ya parseadas.
type Bundle struct {
	PEM  string
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// NewBundle crea un certificado autofirmado de 2048 bits con los atributos
// de sujeto que usa LHDN (CN, O, organizationIdentifier, emailAddress).
func NewBundle(t testing.TB) *Bundle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generar llave: %v", err)
	}
	name := pkix.Name{
		CommonName:   "KLINIK CONTOH SDN BHD",
		Organization: []string{"KLINIK CONTOH SDN BHD"},
		Country:      []string{"MY"},
		ExtraNames: []pkix.AttributeTypeAndValue{
			{Type: asn1.ObjectIdentifier{2, 5, 4, 97}, Value: "C12345678901"},
			{Type: asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}, Value: "billing@example.com"},
		},
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(0x1A2B3C),
		Subject:      name,
		Issuer:       name,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("crear certificado: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsear certificado: %v", err)
	}
	var sb strings.Builder
	_ = pem.Encode(&sb, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	_ = pem.Encode(&sb, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	return &Bundle{PEM: sb.String(), Key: key, Cert: cert}
}
