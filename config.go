package eidasmirror

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/encryption"
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// MetadataConfig configures the metadata store and trust validator.
type MetadataConfig struct {
	// Directory holds the statically trusted metadata files. Empty means
	// no static source.
	Directory string `yaml:"directory"`

	// AllowLiveFetch enables retrieval from the entity URL on cache miss.
	AllowLiveFetch bool `yaml:"allow_live_fetch"`

	// HTTPSOnly restricts live retrieval to https identifiers.
	HTTPSOnly bool `yaml:"https_only"`

	// FetchTimeoutSeconds bounds a single live retrieval. Default 20.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`

	// MaxFetchBytes bounds a fetched document. Default 1 MiB.
	MaxFetchBytes int64 `yaml:"max_fetch_bytes"`

	// RescanIntervalHours is the period of the full directory rescan.
	// Default 24.
	RescanIntervalHours int `yaml:"rescan_interval_hours"`

	// ValidityDurationSeconds bounds how long a live-fetched descriptor
	// that declares no validity stays trusted. Default 86400.
	ValidityDurationSeconds int `yaml:"validity_duration_seconds"`

	// ValidateSignature turns descriptor signature checking on.
	ValidateSignature bool `yaml:"validate_signature"`

	// TrustBypass is a semicolon-separated list of entity identifiers
	// accepted without a signature check.
	TrustBypass string `yaml:"trust_bypass"`
}

// KeystoreConfig locates the engine's private key material.
type KeystoreConfig struct {
	Path     string `yaml:"path"`
	Password string `yaml:"password"`

	// SigningSerial and SigningIssuer select the signing entry by
	// certificate serial number (hex) and issuer DN.
	SigningSerial string `yaml:"signing_serial"`
	SigningIssuer string `yaml:"signing_issuer"`

	// EncryptionSerial and EncryptionIssuer select the decryption entry.
	// Empty means reuse the signing entry.
	EncryptionSerial string `yaml:"encryption_serial"`
	EncryptionIssuer string `yaml:"encryption_issuer"`
}

// TruststoreConfig locates the explicit trust anchor set.
type TruststoreConfig struct {
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
}

// SignatureConfig controls signature production and acceptance.
type SignatureConfig struct {
	// Algorithm is the signature method used when signing.
	Algorithm string `yaml:"algorithm"`

	// AllowedAlgorithms is the whitelist enforced on validation and
	// checked on signing.
	AllowedAlgorithms []string `yaml:"allowed_algorithms"`
}

// EncryptionConfig controls assertion encryption.
type EncryptionConfig struct {
	DataAlgorithm         string `yaml:"data_algorithm"`
	KeyTransportAlgorithm string `yaml:"key_transport_algorithm"`

	// AllowedAlgorithms is the whitelist enforced when decrypting; every
	// algorithm an inbound message declares must appear here.
	AllowedAlgorithms []string `yaml:"allowed_algorithms"`

	// Provider names the cryptographic provider used for decryption.
	// Empty selects the software provider.
	Provider string `yaml:"provider"`
}

// ExtensionConfig selects and parameterizes the attribute codec.
type ExtensionConfig struct {
	// Format selects the dialect: "eidas" or "stork".
	Format string `yaml:"format"`

	// Properties is the engine property table for wire-name lookup.
	Properties map[string]string `yaml:"properties"`

	// RegistryPath points at the dynamic attribute registry resource.
	RegistryPath string `yaml:"registry_path"`

	EmitFriendlyName bool `yaml:"emit_friendly_name"`
	EmitIsRequired   bool `yaml:"emit_is_required"`
}

// Config is the engine configuration.
type Config struct {
	Metadata   MetadataConfig   `yaml:"metadata"`
	Keystore   KeystoreConfig   `yaml:"keystore"`
	Truststore TruststoreConfig `yaml:"truststore"`
	Signature  SignatureConfig  `yaml:"signature"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Extension  ExtensionConfig  `yaml:"extension"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("cannot read configuration %q", path), err)
	}
	return ParseConfig(data)
}

// ParseConfig parses, defaults and validates YAML configuration bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, domain.ConfigError("configuration does not parse", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Metadata.FetchTimeoutSeconds == 0 {
		c.Metadata.FetchTimeoutSeconds = 20
	}
	if c.Metadata.MaxFetchBytes == 0 {
		c.Metadata.MaxFetchBytes = 1 << 20
	}
	if c.Metadata.RescanIntervalHours == 0 {
		c.Metadata.RescanIntervalHours = 24
	}
	if c.Metadata.ValidityDurationSeconds == 0 {
		c.Metadata.ValidityDurationSeconds = 86400
	}
	if c.Signature.Algorithm == "" {
		c.Signature.Algorithm = xmlsec.AlgRSASHA1
	}
	if len(c.Signature.AllowedAlgorithms) == 0 {
		c.Signature.AllowedAlgorithms = xmlsec.DefaultSignatureAlgorithms()
	}
	if c.Encryption.DataAlgorithm == "" {
		c.Encryption.DataAlgorithm = encryption.AlgAES256GCM
	}
	if c.Encryption.KeyTransportAlgorithm == "" {
		c.Encryption.KeyTransportAlgorithm = encryption.AlgRSAOAEP
	}
	if len(c.Encryption.AllowedAlgorithms) == 0 {
		c.Encryption.AllowedAlgorithms = encryption.DefaultEncryptionAlgorithms()
	}
	if c.Extension.Format == "" {
		c.Extension.Format = string(domain.FormatEidas)
	}
}

// Validate checks the configuration for contradictions. Defaults must be
// applied first.
func (c *Config) Validate() error {
	switch domain.Format(c.Extension.Format) {
	case domain.FormatEidas, domain.FormatStork:
	default:
		return domain.ConfigError(
			fmt.Sprintf("unknown extension format %q", c.Extension.Format), nil)
	}

	allowed := false
	for _, alg := range c.Signature.AllowedAlgorithms {
		if alg == c.Signature.Algorithm {
			allowed = true
		}
	}
	if !allowed {
		return domain.ConfigError(
			fmt.Sprintf("signing algorithm %q is not in the allowed set", c.Signature.Algorithm), nil)
	}

	if c.Metadata.FetchTimeoutSeconds < 0 || c.Metadata.MaxFetchBytes < 0 ||
		c.Metadata.RescanIntervalHours < 0 || c.Metadata.ValidityDurationSeconds < 0 {
		return domain.ConfigError("metadata limits must not be negative", nil)
	}

	for _, alg := range []string{c.Encryption.DataAlgorithm, c.Encryption.KeyTransportAlgorithm} {
		found := false
		for _, allowed := range c.Encryption.AllowedAlgorithms {
			if allowed == alg {
				found = true
			}
		}
		if !found {
			return domain.ConfigError(
				fmt.Sprintf("encryption algorithm %q is not in the allowed set", alg), nil)
		}
	}
	if _, ok := encryption.ProviderByName(c.Encryption.Provider); !ok {
		return domain.ConfigError(
			fmt.Sprintf("unknown encryption provider %q", c.Encryption.Provider), nil)
	}

	if c.Keystore.Path != "" && c.Keystore.SigningSerial == "" {
		return domain.ConfigError("keystore configured without a signing serial", nil)
	}
	return nil
}

// FetchTimeout returns the live-fetch bound as a duration.
func (c *MetadataConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// RescanInterval returns the rescan period as a duration.
func (c *MetadataConfig) RescanInterval() time.Duration {
	return time.Duration(c.RescanIntervalHours) * time.Hour
}

// ValidityDuration returns the implied validity of live-fetched
// descriptors as a duration.
func (c *MetadataConfig) ValidityDuration() time.Duration {
	return time.Duration(c.ValidityDurationSeconds) * time.Second
}
