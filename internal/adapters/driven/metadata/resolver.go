package metadata

import (
	"context"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/crewjam/saml"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// ResolverConfig carries the trust policy of a Resolver.
type ResolverConfig struct {
	// AllowLiveFetch enables retrieval from the entity URL on cache miss.
	AllowLiveFetch bool

	// HTTPSOnly restricts live retrieval to https identifiers.
	HTTPSOnly bool

	// ValidateSignature turns descriptor signature checking on.
	ValidateSignature bool

	// TrustBypass is a semicolon-separated list of entity identifiers whose
	// descriptors are accepted without a signature check.
	TrustBypass string

	// Anchors is the explicit certificate set descriptor signatures must
	// chain to by byte identity.
	Anchors []*x509.Certificate

	// SignatureAlgorithms optionally restricts accepted signature methods.
	SignatureAlgorithms []string

	// ValidityDuration bounds how long a live-fetched descriptor that
	// declares no validUntil stays trusted. Zero means unbounded.
	ValidityDuration time.Duration
}

// Resolver answers descriptor lookups against the cache, falling back to
// live retrieval when the policy allows. It is also the change listener the
// static file loader reconciles against.
type Resolver struct {
	cache    ports.MetadataCache
	fetcher  *Fetcher
	cfg      ResolverConfig
	bypass   map[string]bool
	verifier *xmlsec.Verifier
	opts     options
}

// NewResolver creates a resolver over a cache and trust policy.
func NewResolver(cache ports.MetadataCache, cfg ResolverConfig, opts ...Option) (*Resolver, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Resolver{
		cache:  cache,
		cfg:    cfg,
		bypass: make(map[string]bool),
		opts:   o,
	}
	for _, id := range strings.Split(cfg.TrustBypass, ";") {
		if id = strings.TrimSpace(id); id != "" {
			r.bypass[id] = true
		}
	}

	if cfg.ValidateSignature {
		verifierOpts := []xmlsec.VerifierOption{
			xmlsec.WithVerifierMetrics(o.metricsRecorder),
			xmlsec.WithValidationKind("metadata"),
		}
		if o.logger != nil {
			verifierOpts = append(verifierOpts, xmlsec.WithVerifierLogger(o.logger))
		}
		if len(cfg.SignatureAlgorithms) > 0 {
			verifierOpts = append(verifierOpts, xmlsec.WithAlgorithmWhitelist(cfg.SignatureAlgorithms))
		}
		verifier, err := xmlsec.NewVerifier(cfg.Anchors, verifierOpts...)
		if err != nil {
			return nil, err
		}
		r.verifier = verifier
	}

	if cfg.AllowLiveFetch {
		r.fetcher = NewFetcher(opts...)
	}
	return r, nil
}

// Add makes the record available under its entity identifier.
func (r *Resolver) Add(record *domain.DescriptorRecord) {
	r.cache.Put(record.EntityID, record, domain.OriginStatic)
}

// Remove withdraws the identifier from availability.
func (r *Resolver) Remove(entityID string) {
	r.cache.Put(entityID, nil, domain.OriginStatic)
}

// EntityDescriptor resolves an identifier to a currently valid descriptor.
//
// The cache is consulted first; a valid hit wins. An expired entry is
// discarded and remembered, so a failed refresh reports invalid rather than
// unknown metadata. Live retrieval runs only when enabled, and only for
// identifiers the transport policy accepts.
func (r *Resolver) EntityDescriptor(ctx context.Context, entityID string) (*domain.DescriptorRecord, error) {
	if entityID == "" {
		// No identifier means the caller has metadata processing turned
		// off; that is not an error.
		if r.opts.logger != nil {
			r.opts.logger.Debug("descriptor lookup without an entity identifier")
		}
		return nil, nil
	}

	expired := false
	if entry, ok := r.cache.Get(entityID); ok {
		if entry.Record.IsValidAt(r.opts.clock.Now()) {
			return entry.Record, nil
		}
		expired = true
		r.cache.Put(entityID, nil, entry.Origin)
		if r.opts.logger != nil {
			r.opts.logger.Info("discarding expired descriptor",
				zap.String("entity_id", entityID))
		}
	}

	if r.fetcher != nil {
		if r.cfg.HTTPSOnly && !strings.HasPrefix(strings.ToLower(entityID), "https://") {
			return nil, domain.InvalidMetadataSourceError(entityID)
		}
		rec, err := r.fetcher.Fetch(ctx, entityID)
		if err == nil {
			if rec.ValidUntil == nil && r.cfg.ValidityDuration > 0 {
				bound := r.opts.clock.Now().Add(r.cfg.ValidityDuration)
				rec.ValidUntil = &bound
			}
			if !rec.IsValidAt(r.opts.clock.Now()) {
				return nil, domain.InvalidMetadataError(entityID, domain.ErrDescriptorExpired)
			}
			if cerr := r.checkRecordSignature(rec); cerr != nil {
				return nil, cerr
			}
			r.cache.Put(entityID, rec, domain.OriginDynamic)
			return rec, nil
		}
		if r.opts.logger != nil {
			r.opts.logger.Warn("live metadata retrieval failed",
				zap.String("entity_id", entityID), zap.Error(err))
		}
	}

	if expired {
		return nil, domain.InvalidMetadataError(entityID, domain.ErrDescriptorExpired)
	}
	return nil, domain.NoMetadataError(entityID, domain.ErrDescriptorNotFound)
}

// SPDescriptor returns the first service-provider role of the entity.
func (r *Resolver) SPDescriptor(ctx context.Context, entityID string) (*saml.SPSSODescriptor, error) {
	rec, err := r.EntityDescriptor(ctx, entityID)
	if err != nil || rec == nil {
		return nil, err
	}
	sp := domain.FirstSPDescriptor(rec.Descriptor)
	if sp == nil {
		return nil, domain.InvalidMetadataError(entityID,
			fmt.Errorf("no service provider role published"))
	}
	return sp, nil
}

// IDPDescriptor returns the first identity-provider role of the entity.
func (r *Resolver) IDPDescriptor(ctx context.Context, entityID string) (*saml.IDPSSODescriptor, error) {
	rec, err := r.EntityDescriptor(ctx, entityID)
	if err != nil || rec == nil {
		return nil, err
	}
	idp := domain.FirstIDPDescriptor(rec.Descriptor)
	if idp == nil {
		return nil, domain.InvalidMetadataError(entityID,
			fmt.Errorf("no identity provider role published"))
	}
	return idp, nil
}

// CheckSignature validates the enveloped signature of the entity's cached
// descriptor bytes. Identifiers on the bypass list, or any identifier when
// validation is disabled, pass without inspection.
func (r *Resolver) CheckSignature(entityID string) error {
	if r.verifier == nil || r.bypass[entityID] {
		return nil
	}
	entry, ok := r.cache.Get(entityID)
	if !ok {
		return domain.NoMetadataError(entityID, domain.ErrDescriptorNotFound)
	}
	return r.checkRecordSignature(entry.Record)
}

// checkRecordSignature verifies the record's own bytes, falling back to the
// enclosing container's signed bytes for members of a signed aggregate.
func (r *Resolver) checkRecordSignature(rec *domain.DescriptorRecord) error {
	if r.verifier == nil || r.bypass[rec.EntityID] {
		return nil
	}
	data := rec.Raw
	if rec.ContainerSignature != nil {
		data = rec.ContainerSignature
	}
	if _, err := r.verifier.Validate(data); err != nil {
		return err
	}
	return nil
}

var _ ports.MetadataResolver = (*Resolver)(nil)
var _ ports.ChangeListener = (*Resolver)(nil)
