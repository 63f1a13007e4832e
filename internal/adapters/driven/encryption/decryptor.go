package encryption

import (
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Decrypter recovers plaintext assertions from a response's
// encrypted-assertion structures. Decryption is all or nothing: one broken
// assertion fails the whole response and leaves the caller's document
// untouched.
type Decrypter struct {
	provider  Provider
	whitelist []string
	logger    *zap.Logger
	metrics   ports.MetricsRecorder
}

// DecrypterOption configures a Decrypter.
type DecrypterOption func(*Decrypter)

// WithDecrypterProvider overrides the cryptographic provider.
func WithDecrypterProvider(p Provider) DecrypterOption {
	return func(d *Decrypter) { d.provider = p }
}

// WithDecrypterAlgorithmWhitelist restricts the algorithm URIs an inbound
// message may declare for key transport and content encryption.
func WithDecrypterAlgorithmWhitelist(uris []string) DecrypterOption {
	return func(d *Decrypter) { d.whitelist = uris }
}

// WithDecrypterLogger attaches a logger.
func WithDecrypterLogger(l *zap.Logger) DecrypterOption {
	return func(d *Decrypter) { d.logger = l }
}

// WithDecrypterMetrics attaches a metrics recorder.
func WithDecrypterMetrics(m ports.MetricsRecorder) DecrypterOption {
	return func(d *Decrypter) { d.metrics = m }
}

// NewDecrypter creates a decrypter with the software provider.
func NewDecrypter(opts ...DecrypterOption) *Decrypter {
	d := &Decrypter{
		provider:  StdProvider{},
		whitelist: DefaultEncryptionAlgorithms(),
		metrics:   ports.NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decrypt returns a copy of doc in which every EncryptedAssertion has been
// replaced by its recovered plaintext assertion, appended in document order
// after the existing assertions. The declared algorithms of each structure
// drive key unwrap and content decryption.
func (d *Decrypter) Decrypt(doc *etree.Document, cred ports.Credential) (*etree.Document, error) {
	if cred.PrivateKey == nil {
		return nil, domain.DecryptionError("no decryption key", nil)
	}
	out := doc.Copy()
	root := out.Root()
	if root == nil {
		return nil, domain.DecryptionError("document has no root element", nil)
	}

	var encrypted []*etree.Element
	for _, child := range root.ChildElements() {
		if child.Tag == "EncryptedAssertion" {
			encrypted = append(encrypted, child)
		}
	}

	var assertions []*etree.Element
	for _, holder := range encrypted {
		assertion, err := d.decryptOne(holder, cred)
		if err != nil {
			d.metrics.RecordAssertionCrypto("decrypt", false)
			return nil, err
		}
		assertions = append(assertions, assertion)
	}

	for _, a := range assertions {
		root.AddChild(a)
	}
	for _, holder := range encrypted {
		root.RemoveChild(holder)
	}

	d.metrics.RecordAssertionCrypto("decrypt", true)
	if d.logger != nil {
		d.logger.Debug("assertions decrypted", zap.Int("count", len(assertions)))
	}
	return out, nil
}

func (d *Decrypter) decryptOne(holder *etree.Element, cred ports.Credential) (*etree.Element, error) {
	encData := findDescendant(holder, "EncryptedData")
	if encData == nil {
		return nil, domain.DecryptionError("encrypted assertion carries no EncryptedData", nil)
	}
	dataAlg := algorithmOf(encData)
	if !algorithmAllowed(d.whitelist, dataAlg) {
		return nil, domain.DecryptionError("data algorithm "+dataAlg+" is not in the allowed set", nil)
	}
	if _, ok := keySizeFor(dataAlg); !ok {
		return nil, domain.DecryptionError("unsupported data algorithm "+dataAlg, nil)
	}

	keyInfo := findDescendant(encData, "KeyInfo")
	if keyInfo == nil {
		return nil, domain.DecryptionError("EncryptedData carries no KeyInfo", nil)
	}
	encKey := findDescendant(keyInfo, "EncryptedKey")
	if encKey == nil {
		return nil, domain.DecryptionError("KeyInfo carries no EncryptedKey", nil)
	}
	keyAlg := algorithmOf(encKey)
	if !algorithmAllowed(d.whitelist, keyAlg) {
		return nil, domain.DecryptionError("key transport algorithm "+keyAlg+" is not in the allowed set", nil)
	}

	wrapped, err := cipherValue(encKey)
	if err != nil {
		return nil, err
	}
	cek, err := d.provider.UnwrapKey(wrapped, cred.PrivateKey, keyAlg)
	if err != nil {
		return nil, domain.DecryptionError("key unwrap failed", err)
	}

	ciphertext, err := directCipherValue(encData)
	if err != nil {
		return nil, err
	}
	plaintext, err := d.provider.DecryptContent(ciphertext, cek, dataAlg)
	if err != nil {
		return nil, domain.DecryptionError("content decryption failed", err)
	}

	parsed, err := xmlsec.Parse(plaintext)
	if err != nil {
		return nil, domain.DecryptionError("decrypted assertion does not parse", err)
	}
	assertion := parsed.Root()
	if assertion.Tag != "Assertion" {
		return nil, domain.DecryptionError("decrypted content is not an assertion", nil)
	}
	return assertion.Copy(), nil
}

// algorithmOf reads the Algorithm attribute of the element's own
// EncryptionMethod child.
func algorithmOf(el *etree.Element) string {
	for _, child := range el.ChildElements() {
		if child.Tag == "EncryptionMethod" {
			return child.SelectAttrValue("Algorithm", "")
		}
	}
	return ""
}

// directCipherValue reads the CipherData/CipherValue that belongs to el
// itself, not the one nested inside an EncryptedKey.
func directCipherValue(el *etree.Element) ([]byte, error) {
	for _, child := range el.ChildElements() {
		if child.Tag != "CipherData" {
			continue
		}
		return cipherValueText(child)
	}
	return nil, domain.DecryptionError("missing CipherData", nil)
}

func cipherValue(el *etree.Element) ([]byte, error) {
	cd := findDescendant(el, "CipherData")
	if cd == nil {
		return nil, domain.DecryptionError("missing CipherData", nil)
	}
	return cipherValueText(cd)
}

func cipherValueText(cipherData *etree.Element) ([]byte, error) {
	cv := findDescendant(cipherData, "CipherValue")
	if cv == nil {
		return nil, domain.DecryptionError("missing CipherValue", nil)
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, cv.Text())
	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, domain.DecryptionError("cipher value is not valid base64", err)
	}
	return raw, nil
}

// findDescendant returns the first descendant with the given local name,
// depth first, ignoring namespace prefixes.
func findDescendant(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
		if found := findDescendant(child, local); found != nil {
			return found
		}
	}
	return nil
}

var _ ports.Decrypter = (*Decrypter)(nil)
