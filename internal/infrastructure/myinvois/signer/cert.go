// Carga de llave y certificado desde el bundle PEM guardado o desde un .p12.

package signer

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

var (
	oidOrganizationIdentifier = asn1.ObjectIdentifier{2, 5, 4, 97}
	oidEmailAddress           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}
)

// Material llave privada RSA y certificado hoja listos para firmar.
type Material struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// LoadPEM extrae llave y certificado de un bundle PEM único.
// Falta de marcadores, de llave o de certificado => domain.ErrInvalidCertificate.
func LoadPEM(bundle string) (*Material, error) {
	if !strings.Contains(bundle, "-----BEGIN") || !strings.Contains(bundle, "-----END") {
		return nil, fmt.Errorf("%w: faltan marcadores BEGIN/END", domain.ErrInvalidCertificate)
	}
	var m Material
	rest := []byte(bundle)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			if m.Cert != nil {
				continue // solo el certificado hoja (el primero)
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: certificado: %v", domain.ErrInvalidCertificate, err)
			}
			m.Cert = cert
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: llave PKCS#1: %v", domain.ErrInvalidCertificate, err)
			}
			m.Key = key
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: llave PKCS#8: %v", domain.ErrInvalidCertificate, err)
			}
			key, ok := parsed.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("%w: la llave debe ser RSA", domain.ErrInvalidCertificate)
			}
			m.Key = key
		}
	}
	if m.Key == nil {
		return nil, fmt.Errorf("%w: llave privada no encontrada", domain.ErrInvalidCertificate)
	}
	if m.Cert == nil {
		return nil, fmt.Errorf("%w: certificado no encontrado", domain.ErrInvalidCertificate)
	}
	return &m, nil
}

// BundleFromP12 convierte un .p12/.pfx en el bundle PEM (llave + certificado) que se almacena.
func BundleFromP12(data []byte, password string) (string, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return "", fmt.Errorf("decodificar p12: %w", err)
	}
	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("%w: la llave del p12 debe ser RSA", domain.ErrInvalidCertificate)
	}
	var sb strings.Builder
	_ = pem.Encode(&sb, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	_ = pem.Encode(&sb, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	return sb.String(), nil
}

// Describe parsea el bundle y devuelve la entidad con sus metadatos (sin persistir).
func Describe(bundle string) (*entity.Certificate, error) {
	m, err := LoadPEM(bundle)
	if err != nil {
		return nil, err
	}
	c := m.Cert
	return &entity.Certificate{
		PEM:          bundle,
		SubjectCN:    c.Subject.CommonName,
		SubjectOrg:   first(c.Subject.Organization),
		OrgID:        orgIdentifier(c.Subject),
		Email:        attrValue(c.Subject, oidEmailAddress),
		SerialNumber: strings.ToUpper(c.SerialNumber.Text(16)),
		Issuer:       issuerString(c.Issuer),
		ValidFrom:    c.NotBefore,
		ValidTo:      c.NotAfter,
	}, nil
}

// CertDigest devuelve base64(sha256(DER)).
func CertDigest(cert *x509.Certificate) string {
	h := sha256.Sum256(cert.Raw)
	return base64.StdEncoding.EncodeToString(h[:])
}

// IssuerSerial devuelve el CN del emisor y el serial decimal sin ceros a la izquierda.
func IssuerSerial(cert *x509.Certificate) (issuer, serial string) {
	return cert.Issuer.CommonName, strings.TrimLeft(cert.SerialNumber.String(), "0")
}

func orgIdentifier(name pkix.Name) string {
	if v := attrValue(name, oidOrganizationIdentifier); v != "" {
		return v
	}
	return first(name.OrganizationalUnit)
}

func attrValue(name pkix.Name, oid asn1.ObjectIdentifier) string {
	for _, atv := range name.Names {
		if atv.Type.Equal(oid) {
			if s, ok := atv.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

func issuerString(name pkix.Name) string {
	var parts []string
	if name.CommonName != "" {
		parts = append(parts, "CN="+name.CommonName)
	}
	if o := first(name.Organization); o != "" {
		parts = append(parts, "O="+o)
	}
	if c := first(name.Country); c != "" {
		parts = append(parts, "C="+c)
	}
	return strings.Join(parts, ", ")
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
