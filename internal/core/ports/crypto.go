package ports

import (
	"crypto"
	"crypto/x509"

	"github.com/beevik/etree"
)

// Credential pairs a certificate with its private key. Immutable after
// keystore load; signing and decryption may use distinct credentials.
type Credential struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
}

// Signer produces enveloped XML signatures over message documents.
type Signer interface {
	// Sign inserts an enveloped signature under the document root and
	// returns the signed root element.
	Sign(doc *etree.Document) (*etree.Element, error)
}

// Verifier checks enveloped XML signatures against an explicit anchor set.
type Verifier interface {
	// Validate parses data, checks the embedded signature structurally and
	// cryptographically, and returns the validated root element. Untrusted
	// certificates and broken signatures fail with distinguishable errors.
	Validate(data []byte) (*etree.Element, error)
}

// Encrypter replaces plaintext assertions with encrypted-assertion
// structures addressed to a recipient.
type Encrypter interface {
	Encrypt(doc *etree.Document, recipient *x509.Certificate) (*etree.Document, error)
}

// Decrypter recovers plaintext assertions from a response's
// encrypted-assertion structures.
type Decrypter interface {
	Decrypt(doc *etree.Document, cred Credential) (*etree.Document, error)
}
