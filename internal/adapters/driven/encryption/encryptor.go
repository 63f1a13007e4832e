package encryption

import (
	"crypto/x509"
	"encoding/base64"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Encrypter replaces a response's plaintext assertions with
// encrypted-assertion structures addressed to one recipient. Each assertion
// gets its own content encryption key.
type Encrypter struct {
	provider Provider
	dataAlg  string
	keyAlg   string
	logger   *zap.Logger
	metrics  ports.MetricsRecorder
}

// EncrypterOption configures an Encrypter.
type EncrypterOption func(*Encrypter)

// WithEncrypterProvider overrides the cryptographic provider.
func WithEncrypterProvider(p Provider) EncrypterOption {
	return func(e *Encrypter) { e.provider = p }
}

// WithDataAlgorithm sets the block encryption algorithm URI.
func WithDataAlgorithm(uri string) EncrypterOption {
	return func(e *Encrypter) { e.dataAlg = uri }
}

// WithKeyTransportAlgorithm sets the key transport algorithm URI.
func WithKeyTransportAlgorithm(uri string) EncrypterOption {
	return func(e *Encrypter) { e.keyAlg = uri }
}

// WithEncrypterLogger attaches a logger.
func WithEncrypterLogger(l *zap.Logger) EncrypterOption {
	return func(e *Encrypter) { e.logger = l }
}

// WithEncrypterMetrics attaches a metrics recorder.
func WithEncrypterMetrics(m ports.MetricsRecorder) EncrypterOption {
	return func(e *Encrypter) { e.metrics = m }
}

// NewEncrypter creates an encrypter. Defaults: AES-256-GCM content
// encryption, RSA-OAEP key transport.
func NewEncrypter(opts ...EncrypterOption) *Encrypter {
	e := &Encrypter{
		provider: StdProvider{},
		dataAlg:  AlgAES256GCM,
		keyAlg:   AlgRSAOAEP,
		metrics:  ports.NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encrypt returns a copy of doc in which every assertion has been replaced
// in place by an EncryptedAssertion addressed to the recipient. The input
// document is never modified.
func (e *Encrypter) Encrypt(doc *etree.Document, recipient *x509.Certificate) (*etree.Document, error) {
	if recipient == nil {
		return nil, domain.EncryptionError("no recipient certificate", nil)
	}
	out := doc.Copy()
	root := out.Root()
	if root == nil {
		return nil, domain.EncryptionError("document has no root element", nil)
	}

	count := 0
	for _, child := range root.ChildElements() {
		if child.Tag != "Assertion" {
			continue
		}
		encrypted, err := e.encryptAssertion(child, recipient)
		if err != nil {
			e.metrics.RecordAssertionCrypto("encrypt", false)
			return nil, err
		}
		idx := child.Index()
		root.RemoveChildAt(idx)
		root.InsertChildAt(idx, encrypted)
		count++
	}

	e.metrics.RecordAssertionCrypto("encrypt", true)
	if e.logger != nil {
		e.logger.Debug("assertions encrypted",
			zap.Int("count", count),
			zap.String("data_algorithm", e.dataAlg),
		)
	}
	return out, nil
}

func (e *Encrypter) encryptAssertion(assertion *etree.Element, recipient *x509.Certificate) (*etree.Element, error) {
	plaintext, err := xmlsec.SerializeElement(assertion, true)
	if err != nil {
		return nil, domain.EncryptionError("cannot serialize assertion", err)
	}

	cek, err := e.provider.GenerateKey(e.dataAlg)
	if err != nil {
		return nil, domain.EncryptionError("content key generation failed", err)
	}
	ciphertext, err := e.provider.EncryptContent(plaintext, cek, e.dataAlg)
	if err != nil {
		return nil, domain.EncryptionError("content encryption failed", err)
	}
	wrapped, err := e.provider.WrapKey(cek, recipient, e.keyAlg)
	if err != nil {
		return nil, domain.EncryptionError("key transport failed", err)
	}

	holder := etree.NewElement("EncryptedAssertion")
	holder.Space = assertion.Space

	encData := holder.CreateElement("xenc:EncryptedData")
	encData.CreateAttr("xmlns:xenc", xencNS)
	encData.CreateAttr("Id", "_"+uuid.NewString())
	encData.CreateAttr("Type", typeElement)
	encData.CreateElement("xenc:EncryptionMethod").CreateAttr("Algorithm", e.dataAlg)

	keyInfo := encData.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", dsigNS)
	encKey := keyInfo.CreateElement("xenc:EncryptedKey")
	encKey.CreateAttr("Id", "_"+uuid.NewString())
	encKey.CreateElement("xenc:EncryptionMethod").CreateAttr("Algorithm", e.keyAlg)

	recipientInfo := encKey.CreateElement("ds:KeyInfo")
	x509Data := recipientInfo.CreateElement("ds:X509Data")
	x509Data.CreateElement("ds:X509Certificate").SetText(
		base64.StdEncoding.EncodeToString(recipient.Raw))

	keyCipher := encKey.CreateElement("xenc:CipherData")
	keyCipher.CreateElement("xenc:CipherValue").SetText(
		base64.StdEncoding.EncodeToString(wrapped))

	dataCipher := encData.CreateElement("xenc:CipherData")
	dataCipher.CreateElement("xenc:CipherValue").SetText(
		base64.StdEncoding.EncodeToString(ciphertext))

	return holder, nil
}

var _ ports.Encrypter = (*Encrypter)(nil)
