package eidasmirror

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/encryption"
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(""))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.Metadata.FetchTimeout() != 20*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.Metadata.FetchTimeout())
	}
	if cfg.Metadata.MaxFetchBytes != 1<<20 {
		t.Errorf("MaxFetchBytes = %d", cfg.Metadata.MaxFetchBytes)
	}
	if cfg.Metadata.RescanInterval() != 24*time.Hour {
		t.Errorf("RescanInterval = %v", cfg.Metadata.RescanInterval())
	}
	if cfg.Signature.Algorithm != xmlsec.AlgRSASHA1 {
		t.Errorf("signature algorithm = %q", cfg.Signature.Algorithm)
	}
	if len(cfg.Signature.AllowedAlgorithms) == 0 {
		t.Error("allowed algorithms not defaulted")
	}
	if cfg.Encryption.DataAlgorithm != encryption.AlgAES256GCM {
		t.Errorf("data algorithm = %q", cfg.Encryption.DataAlgorithm)
	}
	if cfg.Encryption.KeyTransportAlgorithm != encryption.AlgRSAOAEP {
		t.Errorf("key transport algorithm = %q", cfg.Encryption.KeyTransportAlgorithm)
	}
	if len(cfg.Encryption.AllowedAlgorithms) == 0 {
		t.Error("encryption whitelist not defaulted")
	}
	if cfg.Encryption.Provider != "" {
		t.Errorf("provider = %q, want software default", cfg.Encryption.Provider)
	}
	if cfg.Metadata.ValidityDuration() != 24*time.Hour {
		t.Errorf("ValidityDuration = %v", cfg.Metadata.ValidityDuration())
	}
	if cfg.Extension.Format != string(domain.FormatEidas) {
		t.Errorf("format = %q", cfg.Extension.Format)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
metadata:
  directory: /var/lib/trust/metadata
  allow_live_fetch: true
  https_only: true
  fetch_timeout_seconds: 5
  trust_bypass: "https://a.example.org;https://b.example.org"
extension:
  format: stork
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if !cfg.Metadata.AllowLiveFetch || !cfg.Metadata.HTTPSOnly {
		t.Error("fetch policy not applied")
	}
	if cfg.Metadata.FetchTimeout() != 5*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.Metadata.FetchTimeout())
	}
	if cfg.Extension.Format != string(domain.FormatStork) {
		t.Errorf("format = %q", cfg.Extension.Format)
	}
}

func TestParseConfigRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "\t{{{"},
		{"unknown format", "extension:\n  format: openid\n"},
		{"algorithm outside whitelist", `
signature:
  algorithm: "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
  allowed_algorithms:
    - "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
`},
		{"negative timeout", "metadata:\n  fetch_timeout_seconds: -1\n"},
		{"negative validity duration", "metadata:\n  validity_duration_seconds: -1\n"},
		{"keystore without signing serial", "keystore:\n  path: /etc/trust/keystore.p12\n"},
		{"encryption algorithm outside whitelist", `
encryption:
  key_transport_algorithm: "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
  allowed_algorithms:
    - "http://www.w3.org/2009/xmlenc11#aes256-gcm"
    - "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
`},
		{"unknown encryption provider", "encryption:\n  provider: hsm\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if domain.CodeOf(err) != domain.ErrCodeConfiguration {
				t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeConfiguration)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if domain.CodeOf(err) != domain.ErrCodeConfiguration {
		t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeConfiguration)
	}
}
