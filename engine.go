// Package eidasmirror is the protocol and trust core of a cross-border
// identity federation broker: metadata caching and trust validation,
// message signing, verification and assertion encryption, and the attribute
// extension codecs for the two supported request dialects.
package eidasmirror

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/encryption"
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/extension"
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/keystore"
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/metadata"
	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Engine wires the trust core together: keystore credentials, the metadata
// resolver, the signature boundary, assertion encryption, and the
// configured extension codec.
type Engine struct {
	cfg     Config
	logger  *zap.Logger
	metrics ports.MetricsRecorder

	signingCred ports.Credential
	decryptCred ports.Credential
	anchors     []*x509.Certificate

	cache     *metadata.Cache
	loader    *metadata.FileLoader
	resolver  *metadata.Resolver
	signer    *xmlsec.Signer
	verifier  *xmlsec.Verifier
	encrypter *encryption.Encrypter
	decrypter *encryption.Decrypter
	codec     ports.ExtensionCodec

	closeOnce sync.Once
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger attaches a logger to the engine and every adapter it builds.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m ports.MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// New builds an engine from a validated configuration. The static metadata
// directory, when configured, is loaded synchronously and watched in the
// background until Close.
func New(cfg Config, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		metrics: ports.NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.loadCredentials(); err != nil {
		return nil, err
	}
	if err := e.buildCrypto(); err != nil {
		return nil, err
	}
	if err := e.buildMetadata(); err != nil {
		return nil, err
	}
	e.buildCodec()
	return e, nil
}

func (e *Engine) loadCredentials() error {
	if e.cfg.Keystore.Path != "" {
		storeOpts := []keystore.Option{}
		if e.logger != nil {
			storeOpts = append(storeOpts, keystore.WithLogger(e.logger))
		}
		store, err := keystore.Load(e.cfg.Keystore.Path, e.cfg.Keystore.Password, storeOpts...)
		if err != nil {
			return err
		}
		cred, err := store.Credential(e.cfg.Keystore.SigningSerial, e.cfg.Keystore.SigningIssuer)
		if err != nil {
			return err
		}
		e.signingCred = cred

		e.decryptCred = cred
		if e.cfg.Keystore.EncryptionSerial != "" {
			dec, err := store.Credential(e.cfg.Keystore.EncryptionSerial, e.cfg.Keystore.EncryptionIssuer)
			if err != nil {
				return err
			}
			e.decryptCred = dec
		}
	}

	if e.cfg.Truststore.Path != "" {
		anchors, err := keystore.LoadTrustAnchors(e.cfg.Truststore.Path, e.cfg.Truststore.Password)
		if err != nil {
			return err
		}
		e.anchors = anchors
	}
	return nil
}

func (e *Engine) buildCrypto() error {
	if e.signingCred.PrivateKey != nil {
		signerOpts := []xmlsec.SignerOption{
			xmlsec.WithSignatureAlgorithm(e.cfg.Signature.Algorithm),
		}
		if e.logger != nil {
			signerOpts = append(signerOpts, xmlsec.WithSignerLogger(e.logger))
		}
		signer, err := xmlsec.NewSigner(e.signingCred, signerOpts...)
		if err != nil {
			return err
		}
		e.signer = signer
	}

	if len(e.anchors) > 0 {
		verifierOpts := []xmlsec.VerifierOption{
			xmlsec.WithAlgorithmWhitelist(e.cfg.Signature.AllowedAlgorithms),
			xmlsec.WithVerifierMetrics(e.metrics),
		}
		if e.logger != nil {
			verifierOpts = append(verifierOpts, xmlsec.WithVerifierLogger(e.logger))
		}
		verifier, err := xmlsec.NewVerifier(e.anchors, verifierOpts...)
		if err != nil {
			return err
		}
		e.verifier = verifier
	}

	encOpts := []encryption.EncrypterOption{
		encryption.WithDataAlgorithm(e.cfg.Encryption.DataAlgorithm),
		encryption.WithKeyTransportAlgorithm(e.cfg.Encryption.KeyTransportAlgorithm),
		encryption.WithEncrypterMetrics(e.metrics),
	}
	decOpts := []encryption.DecrypterOption{
		encryption.WithDecrypterMetrics(e.metrics),
	}
	if len(e.cfg.Encryption.AllowedAlgorithms) > 0 {
		decOpts = append(decOpts,
			encryption.WithDecrypterAlgorithmWhitelist(e.cfg.Encryption.AllowedAlgorithms))
	}
	provider, ok := encryption.ProviderByName(e.cfg.Encryption.Provider)
	if !ok {
		return domain.ConfigError(
			fmt.Sprintf("unknown encryption provider %q", e.cfg.Encryption.Provider), nil)
	}
	decOpts = append(decOpts, encryption.WithDecrypterProvider(provider))
	if e.logger != nil {
		encOpts = append(encOpts, encryption.WithEncrypterLogger(e.logger))
		decOpts = append(decOpts, encryption.WithDecrypterLogger(e.logger))
	}
	e.encrypter = encryption.NewEncrypter(encOpts...)
	e.decrypter = encryption.NewDecrypter(decOpts...)
	return nil
}

func (e *Engine) buildMetadata() error {
	mdOpts := []metadata.Option{
		metadata.WithMetricsRecorder(e.metrics),
		metadata.WithFetchTimeout(e.cfg.Metadata.FetchTimeout()),
		metadata.WithMaxFetchBytes(e.cfg.Metadata.MaxFetchBytes),
		metadata.WithRescanInterval(e.cfg.Metadata.RescanInterval()),
	}
	if e.logger != nil {
		mdOpts = append(mdOpts, metadata.WithLogger(e.logger))
	}

	e.cache = metadata.NewCache(mdOpts...)
	resolver, err := metadata.NewResolver(e.cache, metadata.ResolverConfig{
		AllowLiveFetch:      e.cfg.Metadata.AllowLiveFetch,
		HTTPSOnly:           e.cfg.Metadata.HTTPSOnly,
		ValidateSignature:   e.cfg.Metadata.ValidateSignature,
		TrustBypass:         e.cfg.Metadata.TrustBypass,
		Anchors:             e.anchors,
		SignatureAlgorithms: e.cfg.Signature.AllowedAlgorithms,
		ValidityDuration:    e.cfg.Metadata.ValidityDuration(),
	}, mdOpts...)
	if err != nil {
		return err
	}
	e.resolver = resolver

	if e.cfg.Metadata.Directory != "" {
		loader, err := metadata.NewFileLoader(e.cfg.Metadata.Directory, resolver, mdOpts...)
		if err != nil {
			return err
		}
		if err := loader.Load(); err != nil {
			return err
		}
		if err := loader.Start(); err != nil {
			return err
		}
		e.loader = loader
	}
	return nil
}

func (e *Engine) buildCodec() {
	codecCfg := extension.CodecConfig{
		Properties:       e.cfg.Extension.Properties,
		Registry:         extension.NewRegistry(e.cfg.Extension.RegistryPath, e.logger),
		EmitFriendlyName: e.cfg.Extension.EmitFriendlyName,
		EmitIsRequired:   e.cfg.Extension.EmitIsRequired,
		Logger:           e.logger,
	}
	if domain.Format(e.cfg.Extension.Format) == domain.FormatStork {
		e.codec = extension.NewStorkCodec(codecCfg)
	} else {
		e.codec = extension.NewEidasCodec(codecCfg)
	}
}

// Resolver exposes the trust-aware metadata resolver.
func (e *Engine) Resolver() ports.MetadataResolver { return e.resolver }

// Codec exposes the configured extension codec.
func (e *Engine) Codec() ports.ExtensionCodec { return e.codec }

// SigningCredential returns the resolved signing credential.
func (e *Engine) SigningCredential() ports.Credential { return e.signingCred }

// ProcessRequest runs the inbound pipeline on a serialized request: parse
// through the secure boundary, validate the enveloped signature, authorize
// the issuer against the metadata store, and decode the extensions into the
// neutral payload.
func (e *Engine) ProcessRequest(ctx context.Context, data []byte) (*domain.RequestPayload, error) {
	var root *etree.Element
	if e.verifier != nil {
		validated, err := e.verifier.Validate(data)
		if err != nil {
			return nil, err
		}
		root = validated
	} else {
		doc, err := xmlsec.Parse(data)
		if err != nil {
			return nil, err
		}
		root = doc.Root()
	}

	issuer := issuerOf(root)
	if issuer != "" {
		if _, err := e.resolver.EntityDescriptor(ctx, issuer); err != nil {
			return nil, err
		}
		if err := e.resolver.CheckSignature(issuer); err != nil {
			return nil, err
		}
	}

	ext := extensionsElement(root)
	payload, err := e.codec.DecodeRequest(ext)
	if err != nil {
		return nil, err
	}
	payload.Issuer = issuer
	return payload, nil
}

// BuildRequest runs the outbound pipeline: encode the payload's extensions,
// assemble the request document, sign it when a signing credential is
// configured, and serialize through the secure boundary.
func (e *Engine) BuildRequest(req *domain.RequestPayload) ([]byte, error) {
	ext, err := e.codec.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("saml2p:AuthnRequest")
	root.CreateAttr("xmlns:saml2p", "urn:oasis:names:tc:SAML:2.0:protocol")
	root.CreateAttr("xmlns:saml2", "urn:oasis:names:tc:SAML:2.0:assertion")
	root.CreateAttr("ID", "_"+uuid.NewString())
	root.CreateAttr("Version", "2.0")
	root.CreateAttr("IssueInstant", time.Now().UTC().Format(time.RFC3339))
	if req.Destination != "" {
		root.CreateAttr("Destination", req.Destination)
	}
	if req.Issuer != "" {
		root.CreateElement("saml2:Issuer").SetText(req.Issuer)
	}
	root.AddChild(ext)

	if e.signer != nil {
		if _, err := e.signer.Sign(doc); err != nil {
			return nil, err
		}
	}
	return xmlsec.Serialize(doc)
}

// DecryptResponse parses a serialized response and replaces its encrypted
// assertions with their plaintext form.
func (e *Engine) DecryptResponse(data []byte) ([]byte, error) {
	doc, err := xmlsec.Parse(data)
	if err != nil {
		return nil, err
	}
	out, err := e.decrypter.Decrypt(doc, e.decryptCred)
	if err != nil {
		return nil, err
	}
	return xmlsec.Serialize(out)
}

// EncryptResponse parses a serialized response and encrypts its assertions
// for the recipient entity, whose encryption certificate is taken from its
// resolved metadata.
func (e *Engine) EncryptResponse(ctx context.Context, data []byte, recipientID string) ([]byte, error) {
	rec, err := e.resolver.EntityDescriptor(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.EncryptionError("no recipient entity identifier", nil)
	}
	cert, err := encryptionCertificate(rec.Descriptor)
	if err != nil {
		return nil, err
	}

	doc, err := xmlsec.Parse(data)
	if err != nil {
		return nil, err
	}
	out, err := e.encrypter.Encrypt(doc, cert)
	if err != nil {
		return nil, err
	}
	return xmlsec.Serialize(out)
}

// Close stops the metadata watcher and rescan task. Safe to call
// repeatedly.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.loader != nil {
			err = e.loader.Close()
		}
	})
	return err
}

// issuerOf returns the text of the root's Issuer child, if any.
func issuerOf(root *etree.Element) string {
	for _, child := range root.ChildElements() {
		if child.Tag == "Issuer" {
			return strings.TrimSpace(child.Text())
		}
	}
	return ""
}

// extensionsElement returns the root's Extensions child, or nil.
func extensionsElement(root *etree.Element) *etree.Element {
	for _, child := range root.ChildElements() {
		if child.Tag == "Extensions" {
			return child
		}
	}
	return nil
}

// encryptionCertificate picks the recipient's encryption certificate from
// its published role descriptors, preferring a key descriptor marked for
// encryption and falling back to one with no declared use.
func encryptionCertificate(desc *saml.EntityDescriptor) (*x509.Certificate, error) {
	var kds []saml.KeyDescriptor
	if sp := domain.FirstSPDescriptor(desc); sp != nil {
		kds = sp.KeyDescriptors
	} else if idp := domain.FirstIDPDescriptor(desc); idp != nil {
		kds = idp.KeyDescriptors
	}

	var fallback *saml.KeyDescriptor
	for i := range kds {
		switch kds[i].Use {
		case "encryption":
			return certFromKeyDescriptor(&kds[i])
		case "":
			if fallback == nil {
				fallback = &kds[i]
			}
		}
	}
	if fallback != nil {
		return certFromKeyDescriptor(fallback)
	}
	return nil, domain.EncryptionError("recipient publishes no encryption certificate", nil)
}

func certFromKeyDescriptor(kd *saml.KeyDescriptor) (*x509.Certificate, error) {
	certs := kd.KeyInfo.X509Data.X509Certificates
	if len(certs) == 0 {
		return nil, domain.EncryptionError("key descriptor carries no certificate", nil)
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, certs[0].Data)
	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, domain.EncryptionError("recipient certificate is not valid base64", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, domain.EncryptionError("recipient certificate does not parse", err)
	}
	return cert, nil
}
