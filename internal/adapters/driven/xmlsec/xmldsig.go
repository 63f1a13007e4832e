package xmlsec

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Signer produces enveloped signatures over message documents with
// exclusive canonicalization.
type Signer struct {
	cred      ports.Credential
	algorithm string
	logger    *zap.Logger
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithSignerLogger attaches a logger for signing events.
func WithSignerLogger(l *zap.Logger) SignerOption {
	return func(s *Signer) { s.logger = l }
}

// WithSignatureAlgorithm overrides the signature method URI. The caller is
// expected to have checked it against the configured whitelist.
func WithSignatureAlgorithm(uri string) SignerOption {
	return func(s *Signer) { s.algorithm = uri }
}

// NewSigner creates a signer around a keystore credential. The signature
// method defaults to RSA-SHA1 unless overridden.
func NewSigner(cred ports.Credential, opts ...SignerOption) (*Signer, error) {
	if cred.Certificate == nil || cred.PrivateKey == nil {
		return nil, domain.ConfigError("signer requires a certificate and private key", nil)
	}
	s := &Signer{cred: cred, algorithm: AlgRSASHA1}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign inserts an enveloped signature under the document root and returns
// the signed root element. The document is mutated in place.
func (s *Signer) Sign(doc *etree.Document) (*etree.Element, error) {
	root := doc.Root()
	if root == nil {
		return nil, domain.SignatureComputationError("document has no root element", nil)
	}

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{s.cred.Certificate.Raw},
		PrivateKey:  s.cred.PrivateKey,
	})
	ctx := dsig.NewDefaultSigningContext(keyStore)
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := ctx.SetSignatureMethod(s.algorithm); err != nil {
		return nil, domain.SignatureComputationError(
			fmt.Sprintf("signature method %q not usable", s.algorithm), err)
	}

	signed, err := ctx.SignEnveloped(root)
	if err != nil {
		return nil, domain.SignatureComputationError("enveloped signing failed", err)
	}
	doc.SetRoot(signed)

	if s.logger != nil {
		s.logger.Debug("document signed",
			zap.String("algorithm", s.algorithm),
			zap.String("cert_subject", s.cred.Certificate.Subject.String()),
		)
	}
	return signed, nil
}

// Verifier validates enveloped signatures against an explicit set of trust
// anchors. A signing certificate is trusted only when it is byte-identical
// to one of the anchors; chain building and revocation are out of scope.
type Verifier struct {
	anchors   []*x509.Certificate
	whitelist []string
	kind      string
	logger    *zap.Logger
	metrics   ports.MetricsRecorder
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger attaches a logger for verification events.
func WithVerifierLogger(l *zap.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = l }
}

// WithAlgorithmWhitelist restricts accepted signature method URIs.
func WithAlgorithmWhitelist(uris []string) VerifierOption {
	return func(v *Verifier) { v.whitelist = uris }
}

// WithVerifierMetrics attaches a metrics recorder.
func WithVerifierMetrics(m ports.MetricsRecorder) VerifierOption {
	return func(v *Verifier) { v.metrics = m }
}

// WithValidationKind sets the kind label recorded with every validation,
// so metadata checks and message checks count separately.
func WithValidationKind(kind string) VerifierOption {
	return func(v *Verifier) { v.kind = kind }
}

// NewVerifier creates a verifier over the given trust anchors.
func NewVerifier(anchors []*x509.Certificate, opts ...VerifierOption) (*Verifier, error) {
	if len(anchors) == 0 {
		return nil, domain.ConfigError("verifier requires at least one trust anchor", nil)
	}
	v := &Verifier{
		anchors:   anchors,
		whitelist: DefaultSignatureAlgorithms(),
		kind:      "message",
		metrics:   ports.NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate parses data, checks the embedded enveloped signature, and
// returns the validated root element. The element is the one goxmldsig
// reconstructed from the signed reference, so signature-wrapping payloads
// outside it are discarded.
func (v *Verifier) Validate(data []byte) (*etree.Element, error) {
	doc, err := Parse(data)
	if err != nil {
		v.metrics.RecordSignatureValidation(v.kind, false)
		return nil, err
	}
	root := doc.Root()

	sig := findChild(root, "Signature")
	if sig == nil {
		v.metrics.RecordSignatureValidation(v.kind, false)
		return nil, domain.SignatureValidationError("document carries no signature", nil)
	}
	if err := v.checkProfile(sig); err != nil {
		v.metrics.RecordSignatureValidation(v.kind, false)
		return nil, err
	}

	leaf, err := extractLeafCertificate(sig)
	if err != nil {
		v.metrics.RecordSignatureValidation(v.kind, false)
		return nil, err
	}
	if !v.isTrusted(leaf) {
		v.metrics.RecordSignatureValidation(v.kind, false)
		if v.logger != nil {
			v.logger.Warn("signing certificate not trusted",
				zap.String("cert_subject", leaf.Subject.String()),
				zap.String("serial", leaf.SerialNumber.Text(16)),
			)
		}
		return nil, domain.SignatureValidationError(
			fmt.Sprintf("signing certificate %q is not a configured anchor", leaf.Subject.String()),
			domain.ErrUntrustedCertificate)
	}

	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{Roots: v.anchors})
	validated, err := ctx.Validate(root)
	if err != nil {
		v.metrics.RecordSignatureValidation(v.kind, false)
		return nil, domain.SignatureValidationError("cryptographic verification failed",
			fmt.Errorf("%w: %v", domain.ErrBadSignature, err))
	}

	v.metrics.RecordSignatureValidation(v.kind, true)
	if v.logger != nil {
		v.logger.Debug("signature verified",
			zap.String("cert_subject", leaf.Subject.String()),
		)
	}
	return validated, nil
}

// checkProfile enforces the structural signature profile: exclusive
// canonicalization, a whitelisted signature method, and a single enveloped
// reference.
func (v *Verifier) checkProfile(sig *etree.Element) error {
	signedInfo := findChild(sig, "SignedInfo")
	if signedInfo == nil {
		return domain.SignatureValidationError("signature has no SignedInfo", nil)
	}

	method := findChild(signedInfo, "SignatureMethod")
	if method == nil {
		return domain.SignatureValidationError("signature declares no method", nil)
	}
	alg := method.SelectAttrValue("Algorithm", "")
	if !algorithmAllowed(v.whitelist, alg) {
		return domain.SignatureValidationError(
			fmt.Sprintf("signature algorithm %q not in whitelist", alg), nil)
	}

	refs := findChildren(signedInfo, "Reference")
	if len(refs) != 1 {
		return domain.SignatureValidationError(
			fmt.Sprintf("expected exactly one reference, found %d", len(refs)), nil)
	}
	enveloped := false
	if transforms := findChild(refs[0], "Transforms"); transforms != nil {
		for _, tr := range findChildren(transforms, "Transform") {
			if tr.SelectAttrValue("Algorithm", "") == AlgEnvelopedSignature {
				enveloped = true
			}
		}
	}
	if !enveloped {
		return domain.SignatureValidationError("reference lacks the enveloped-signature transform", nil)
	}
	return nil
}

func (v *Verifier) isTrusted(leaf *x509.Certificate) bool {
	for _, anchor := range v.anchors {
		if bytes.Equal(anchor.Raw, leaf.Raw) {
			return true
		}
	}
	return false
}

// extractLeafCertificate pulls the first X509Certificate out of the
// signature's KeyInfo.
func extractLeafCertificate(sig *etree.Element) (*x509.Certificate, error) {
	keyInfo := findChild(sig, "KeyInfo")
	if keyInfo == nil {
		return nil, domain.SignatureValidationError("signature carries no KeyInfo", nil)
	}
	x509Data := findChild(keyInfo, "X509Data")
	if x509Data == nil {
		return nil, domain.SignatureValidationError("KeyInfo carries no X509Data", nil)
	}
	certEl := findChild(x509Data, "X509Certificate")
	if certEl == nil {
		return nil, domain.SignatureValidationError("X509Data carries no certificate", nil)
	}

	b64 := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, certEl.Text())
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, domain.SignatureValidationError("certificate is not valid base64", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, domain.SignatureValidationError("certificate does not parse", err)
	}
	return cert, nil
}

// findChild returns the first direct child with the given local name,
// ignoring namespace prefixes.
func findChild(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
	}
	return nil
}

func findChildren(el *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			out = append(out, child)
		}
	}
	return out
}

var _ ports.Signer = (*Signer)(nil)
var _ ports.Verifier = (*Verifier)(nil)
