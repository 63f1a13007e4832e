// Package trust provides test fixtures for the trust core: throwaway keys
// and certificates, signed metadata documents, and PKCS#12 stores built
// with the same libraries the production adapters use.
package trust

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// KeyPair is a throwaway RSA key with a self-signed certificate.
type KeyPair struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// NewKeyPair generates a key pair for the given common name.
func NewKeyPair(t testing.TB, commonName string) *KeyPair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"Trust Core Tests"},
		},
		Issuer: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return &KeyPair{Key: key, Cert: cert}
}

// Sign wraps data's root element in an enveloped signature.
func (kp *KeyPair) Sign(t testing.TB, data []byte) []byte {
	t.Helper()

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.Fatalf("parse document to sign: %v", err)
	}
	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{kp.Cert.Raw},
		PrivateKey:  kp.Key,
	})
	ctx := dsig.NewDefaultSigningContext(keyStore)
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signed, err := ctx.SignEnveloped(doc.Root())
	if err != nil {
		t.Fatalf("sign document: %v", err)
	}
	doc.SetRoot(signed)
	out, err := doc.WriteToBytes()
	if err != nil {
		t.Fatalf("serialize signed document: %v", err)
	}
	return out
}

// PKCS12 encodes the key pair as PKCS#12 keystore bytes.
func (kp *KeyPair) PKCS12(t testing.TB, password string) []byte {
	t.Helper()

	data, err := pkcs12.Legacy.Encode(kp.Key, kp.Cert, nil, password)
	if err != nil {
		t.Fatalf("encode keystore: %v", err)
	}
	return data
}

// TrustStore encodes certificates as PKCS#12 truststore bytes.
func TrustStore(t testing.TB, password string, certs ...*x509.Certificate) []byte {
	t.Helper()

	data, err := pkcs12.Legacy.EncodeTrustStore(certs, password)
	if err != nil {
		t.Fatalf("encode truststore: %v", err)
	}
	return data
}

// EntityDescriptorFragment builds a minimal entity descriptor element
// without an XML declaration, suitable for nesting in an aggregate.
// validUntil is omitted when zero. The SP role carries the certificate for
// encryption when one is supplied.
func EntityDescriptorFragment(entityID string, validUntil time.Time, encryptionCert string) string {
	validity := ""
	if !validUntil.IsZero() {
		validity = fmt.Sprintf(` validUntil=%q`, validUntil.UTC().Format(time.RFC3339))
	}
	keyDescriptor := ""
	if encryptionCert != "" {
		keyDescriptor = fmt.Sprintf(`
    <md:KeyDescriptor use="encryption">
      <ds:KeyInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
        <ds:X509Data><ds:X509Certificate>%s</ds:X509Certificate></ds:X509Data>
      </ds:KeyInfo>
    </md:KeyDescriptor>`, encryptionCert)
	}
	return fmt.Sprintf(`<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" entityID=%q%s>
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">%s
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location="%s/acs" index="0"/>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`, entityID, validity, keyDescriptor, entityID)
}

// EntityDescriptorXML builds a complete entity descriptor document.
func EntityDescriptorXML(entityID string, validUntil time.Time, encryptionCert string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		EntityDescriptorFragment(entityID, validUntil, encryptionCert))
}

// AggregateXML wraps entity descriptor documents in an EntitiesDescriptor.
// The members must be serialized without an XML declaration.
func AggregateXML(members ...string) []byte {
	body := ""
	for _, m := range members {
		body += "\n  " + m
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<md:EntitiesDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata">%s
</md:EntitiesDescriptor>`, body))
}
