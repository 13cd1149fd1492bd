package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/document"
)

// ErrSignatureMismatch la firma inyectada no corresponde al contenido.
var ErrSignatureMismatch = errors.New("signer: la firma no coincide")

// Verify recalcula el digest de SignedProperties desde el bloque inyectado y
// valida SignatureValue contra la llave pública del certificado embebido.
func Verify(doc *document.Node) (*x509.Certificate, error) {
	sig := doc.Path(append([]string{"Invoice"}, signaturePath...)...)
	if sig == nil || sig.Child("SignedInfo") == nil {
		return nil, fmt.Errorf("signer: el documento no está firmado")
	}

	der, err := base64.StdEncoding.DecodeString(sig.PathValue("KeyInfo", "X509Data", "X509Certificate"))
	if err != nil {
		return nil, fmt.Errorf("signer: X509Certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("signer: X509Certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("signer: el certificado no es RSA")
	}

	props := sig.Path("Object", "QualifyingProperties", "SignedProperties")
	if props == nil {
		return nil, fmt.Errorf("signer: falta SignedProperties")
	}
	if got := props.PathValue("SignedSignatureProperties", "SigningCertificate", "Cert", "CertDigest", "DigestValue"); got != CertDigest(cert) {
		return nil, fmt.Errorf("%w: CertDigest", ErrSignatureMismatch)
	}
	digest, err := digestOf(fromNode(props))
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar SignedProperties: %w", err)
	}
	if digest != sig.PathValue("SignedInfo", "Reference", "DigestValue") {
		return nil, fmt.Errorf("%w: digest de SignedProperties", ErrSignatureMismatch)
	}

	canonicalInfo, err := canonical(fromNode(sig.Child("SignedInfo")))
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar SignedInfo: %w", err)
	}
	value, err := base64.StdEncoding.DecodeString(sig.PathValue("SignatureValue"))
	if err != nil {
		return nil, fmt.Errorf("signer: SignatureValue: %w", err)
	}
	hash := sha256.Sum256(canonicalInfo)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	return cert, nil
}
