package xmlsec

import (
	"bytes"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
	"github.com/willp-bl/eidas-mirror-sub004/testfixtures/trust"
)

func signedDocument(t *testing.T, kp *trust.KeyPair, opts ...SignerOption) []byte {
	t.Helper()

	doc, err := Parse([]byte(`<Request xmlns="urn:test:federation" ID="_req1"><Payload>hello</Payload></Request>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	signer, err := NewSigner(ports.Credential{Certificate: kp.Cert, PrivateKey: kp.Key}, opts...)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if _, err := signer.Sign(doc); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	out, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return out
}

func TestSignThenValidate(t *testing.T) {
	kp := trust.NewKeyPair(t, "signer.example.org")
	signed := signedDocument(t, kp)

	verifier, err := NewVerifier([]*x509.Certificate{kp.Cert})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	validated, err := verifier.Validate(signed)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validated.Tag != "Request" {
		t.Errorf("validated root tag = %q, want Request", validated.Tag)
	}
	if validated.SelectAttrValue("ID", "") != "_req1" {
		t.Error("validated element lost its ID attribute")
	}
}

func TestValidateRejectsUntrustedSigner(t *testing.T) {
	anchor := trust.NewKeyPair(t, "anchor.example.org")
	rogue := trust.NewKeyPair(t, "rogue.example.org")
	signed := signedDocument(t, rogue)

	verifier, err := NewVerifier([]*x509.Certificate{anchor.Cert})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	_, err = verifier.Validate(signed)
	if !errors.Is(err, domain.ErrUntrustedCertificate) {
		t.Fatalf("error = %v, want wrapped ErrUntrustedCertificate", err)
	}
	if domain.CodeOf(err) != domain.ErrCodeSignatureValidation {
		t.Errorf("error code = %q", domain.CodeOf(err))
	}
}

func TestValidateRejectsTamperedContent(t *testing.T) {
	kp := trust.NewKeyPair(t, "signer.example.org")
	signed := signedDocument(t, kp)

	tampered := bytes.Replace(signed, []byte(">hello<"), []byte(">jello<"), 1)
	if bytes.Equal(tampered, signed) {
		t.Fatal("tampering did not change the document")
	}

	verifier, err := NewVerifier([]*x509.Certificate{kp.Cert})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	_, err = verifier.Validate(tampered)
	if !errors.Is(err, domain.ErrBadSignature) {
		t.Fatalf("error = %v, want wrapped ErrBadSignature", err)
	}
}

func TestValidateEnforcesAlgorithmWhitelist(t *testing.T) {
	kp := trust.NewKeyPair(t, "signer.example.org")
	signed := signedDocument(t, kp, WithSignatureAlgorithm(AlgRSASHA1))

	verifier, err := NewVerifier([]*x509.Certificate{kp.Cert},
		WithAlgorithmWhitelist([]string{AlgRSASHA256}))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	_, err = verifier.Validate(signed)
	if err == nil {
		t.Fatal("expected whitelist rejection")
	}
	if domain.CodeOf(err) != domain.ErrCodeSignatureValidation {
		t.Errorf("error code = %q", domain.CodeOf(err))
	}
	if errors.Is(err, domain.ErrBadSignature) || errors.Is(err, domain.ErrUntrustedCertificate) {
		t.Errorf("whitelist rejection must not reach cryptographic checks: %v", err)
	}
}

// recordingMetrics captures signature validation observations.
type recordingMetrics struct {
	ports.NoopMetricsRecorder
	kinds   []string
	results []bool
}

func (m *recordingMetrics) RecordSignatureValidation(kind string, success bool) {
	m.kinds = append(m.kinds, kind)
	m.results = append(m.results, success)
}

func TestValidateRecordsConfiguredKind(t *testing.T) {
	kp := trust.NewKeyPair(t, "signer.example.org")
	signed := signedDocument(t, kp)

	rec := &recordingMetrics{}
	verifier, err := NewVerifier([]*x509.Certificate{kp.Cert},
		WithVerifierMetrics(rec),
		WithValidationKind("metadata"))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := verifier.Validate(signed); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(rec.kinds) != 1 || rec.kinds[0] != "metadata" {
		t.Errorf("recorded kinds = %v, want [metadata]", rec.kinds)
	}
	if len(rec.results) != 1 || !rec.results[0] {
		t.Errorf("recorded results = %v, want [true]", rec.results)
	}
}

func TestValidateRequiresSignature(t *testing.T) {
	kp := trust.NewKeyPair(t, "anchor.example.org")
	verifier, err := NewVerifier([]*x509.Certificate{kp.Cert})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	_, err = verifier.Validate([]byte(`<Request xmlns="urn:test:federation"/>`))
	if domain.CodeOf(err) != domain.ErrCodeSignatureValidation {
		t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeSignatureValidation)
	}
}

func TestNewVerifierRequiresAnchors(t *testing.T) {
	if _, err := NewVerifier(nil); domain.CodeOf(err) != domain.ErrCodeConfiguration {
		t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeConfiguration)
	}
}
