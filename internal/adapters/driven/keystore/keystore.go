// Package keystore loads PKCS#12 key and trust material and resolves the
// engine's active credentials. Credential selection scans every keystore
// entry for a certificate matching the configured serial number and issuer,
// so operators never have to keep aliases in sync with the store.
package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Store holds the decoded contents of a PKCS#12 keystore: every private key
// paired with its certificate, plus any bare certificates.
type Store struct {
	creds  []ports.Credential
	certs  []*x509.Certificate
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger for load and lookup events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Load reads and decodes a PKCS#12 keystore file. A wrong password or an
// undecodable file is a configuration error.
func Load(path, password string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("cannot read keystore %q", path), err)
	}
	return Decode(data, password, opts...)
}

// Decode decodes PKCS#12 bytes into a Store.
func Decode(data []byte, password string, opts ...Option) (*Store, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, domain.ConfigError("cannot decode keystore, check the password", err)
	}

	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}

	type keyed struct {
		key     crypto.Signer
		localID string
	}
	var keys []keyed
	var certs []certEntry

	for _, block := range blocks {
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("skipping undecodable keystore certificate", zap.Error(err))
				}
				continue
			}
			certs = append(certs, certEntry{cert: cert, localID: block.Headers["localKeyId"]})
			s.certs = append(s.certs, cert)
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			key, err := parsePrivateKey(block)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("skipping undecodable keystore key", zap.Error(err))
				}
				continue
			}
			keys = append(keys, keyed{key: key, localID: block.Headers["localKeyId"]})
		}
	}

	for _, k := range keys {
		cert := matchCertificate(k.key, k.localID, certs)
		if cert == nil {
			continue
		}
		s.creds = append(s.creds, ports.Credential{Certificate: cert, PrivateKey: k.key})
	}

	if s.logger != nil {
		s.logger.Info("keystore loaded",
			zap.Int("credentials", len(s.creds)),
			zap.Int("certificates", len(s.certs)),
		)
	}
	return s, nil
}

// Credential scans the store for the entry whose certificate matches the
// given serial number (hexadecimal, case-insensitive) and issuer DN.
func (s *Store) Credential(serialHex, issuerDN string) (ports.Credential, error) {
	wantIssuer := normalizeDN(issuerDN)
	wantSerial := strings.TrimLeft(strings.ToLower(serialHex), "0")
	for _, cred := range s.creds {
		cert := cred.Certificate
		if strings.TrimLeft(strings.ToLower(cert.SerialNumber.Text(16)), "0") != wantSerial {
			continue
		}
		if normalizeDN(cert.Issuer.String()) != wantIssuer {
			continue
		}
		return cred, nil
	}
	return ports.Credential{}, domain.ConfigError(
		fmt.Sprintf("no keystore entry matches serial %q issued by %q", serialHex, issuerDN), nil)
}

// Certificates returns every certificate found in the store.
func (s *Store) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), s.certs...)
}

// LoadTrustAnchors reads a PKCS#12 truststore and returns every certificate
// it contains. These become the explicit anchor set for signature checks.
func LoadTrustAnchors(path, password string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("cannot read truststore %q", path), err)
	}
	certs, err := pkcs12.DecodeTrustStore(data, password)
	if err != nil {
		// Truststores exported with key entries alongside certificates do
		// not decode as a pure trust store; fall back to a full scan.
		store, serr := Decode(data, password)
		if serr != nil {
			return nil, domain.ConfigError("cannot decode truststore, check the password", err)
		}
		certs = store.Certificates()
	}
	if len(certs) == 0 {
		return nil, domain.ConfigError(fmt.Sprintf("truststore %q holds no certificates", path), nil)
	}
	return certs, nil
}

func parsePrivateKey(block *pem.Block) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key type %T cannot sign", key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unsupported private key encoding: %w", err)
	}
	return key, nil
}

type certEntry struct {
	cert    *x509.Certificate
	localID string
}

// matchCertificate pairs a key with its certificate, preferring the PKCS#12
// localKeyId linkage and falling back to public key comparison.
func matchCertificate(key crypto.Signer, localID string, certs []certEntry) *x509.Certificate {
	if localID != "" {
		for _, c := range certs {
			if c.localID == localID {
				return c.cert
			}
		}
	}
	for _, c := range certs {
		if publicKeysEqual(key.Public(), c.cert.PublicKey) {
			return c.cert
		}
	}
	return nil
}

func publicKeysEqual(a, b interface{}) bool {
	switch pub := a.(type) {
	case *rsa.PublicKey:
		other, ok := b.(*rsa.PublicKey)
		return ok && pub.Equal(other)
	case *ecdsa.PublicKey:
		other, ok := b.(*ecdsa.PublicKey)
		return ok && pub.Equal(other)
	}
	return false
}

// normalizeDN makes distinguished names comparable across producers that
// differ in spacing and case around the RDN separators.
func normalizeDN(dn string) string {
	parts := strings.Split(dn, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, ",")
}
