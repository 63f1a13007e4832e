package metadata

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
	"github.com/willp-bl/eidas-mirror-sub004/testfixtures/trust"
)

func TestResolverCacheHit(t *testing.T) {
	cache := NewCache()
	resolver, err := NewResolver(cache, ResolverConfig{})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	rec := &domain.DescriptorRecord{EntityID: "https://sp.example.org"}
	resolver.Add(rec)

	got, err := resolver.EntityDescriptor(context.Background(), rec.EntityID)
	if err != nil {
		t.Fatalf("EntityDescriptor: %v", err)
	}
	if got != rec {
		t.Error("resolved a different record")
	}
	if origin, _ := cache.Origin(rec.EntityID); origin != domain.OriginStatic {
		t.Errorf("origin = %q, want STATIC", origin)
	}
}

func TestResolverUnknownEntity(t *testing.T) {
	resolver, err := NewResolver(NewCache(), ResolverConfig{})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	_, err = resolver.EntityDescriptor(context.Background(), "https://unknown.example.org")
	if domain.CodeOf(err) != domain.ErrCodeNoMetadata {
		t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeNoMetadata)
	}
	if !errors.Is(err, domain.ErrDescriptorNotFound) {
		t.Errorf("error = %v, want wrapped ErrDescriptorNotFound", err)
	}

	// An empty identifier means metadata processing is off for the caller;
	// the lookup yields nothing rather than an error.
	rec, err := resolver.EntityDescriptor(context.Background(), "")
	if rec != nil || err != nil {
		t.Errorf("empty identifier = (%v, %v), want (nil, nil)", rec, err)
	}
	sp, err := resolver.SPDescriptor(context.Background(), "")
	if sp != nil || err != nil {
		t.Errorf("empty identifier SP role = (%v, %v), want (nil, nil)", sp, err)
	}
}

func TestResolverExpiredEntry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCache(WithClock(clock))
	resolver, err := NewResolver(cache, ResolverConfig{}, WithClock(clock))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	past := clock.now.Add(-time.Hour)
	resolver.Add(&domain.DescriptorRecord{
		EntityID:   "https://sp.example.org",
		ValidUntil: &past,
	})

	_, err = resolver.EntityDescriptor(context.Background(), "https://sp.example.org")
	if domain.CodeOf(err) != domain.ErrCodeInvalidMetadata {
		t.Fatalf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeInvalidMetadata)
	}
	if !errors.Is(err, domain.ErrDescriptorExpired) {
		t.Errorf("error = %v, want wrapped ErrDescriptorExpired", err)
	}

	// The expired entry was discarded, so the next lookup reports unknown
	// rather than invalid.
	_, err = resolver.EntityDescriptor(context.Background(), "https://sp.example.org")
	if domain.CodeOf(err) != domain.ErrCodeNoMetadata {
		t.Errorf("second lookup error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeNoMetadata)
	}
}

func TestResolverHTTPSOnly(t *testing.T) {
	resolver, err := NewResolver(NewCache(), ResolverConfig{
		AllowLiveFetch: true,
		HTTPSOnly:      true,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	_, err = resolver.EntityDescriptor(context.Background(), "http://plain.example.org")
	if domain.CodeOf(err) != domain.ErrCodeInvalidMetadataSource {
		t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeInvalidMetadataSource)
	}
}

func TestResolverLiveFetch(t *testing.T) {
	var entityID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(trust.EntityDescriptorXML(entityID, time.Time{}, ""))
	}))
	defer server.Close()
	entityID = server.URL

	cache := NewCache()
	resolver, err := NewResolver(cache, ResolverConfig{AllowLiveFetch: true},
		WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	rec, err := resolver.EntityDescriptor(context.Background(), entityID)
	if err != nil {
		t.Fatalf("EntityDescriptor: %v", err)
	}
	if rec.EntityID != entityID {
		t.Errorf("EntityID = %q, want %q", rec.EntityID, entityID)
	}
	if origin, _ := cache.Origin(entityID); origin != domain.OriginDynamic {
		t.Errorf("origin = %q, want DYNAMIC", origin)
	}
}

func TestResolverLiveFetchExpired(t *testing.T) {
	var entityID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(trust.EntityDescriptorXML(entityID, time.Now().UTC().Add(-time.Hour), ""))
	}))
	defer server.Close()
	entityID = server.URL

	cache := NewCache()
	resolver, err := NewResolver(cache, ResolverConfig{AllowLiveFetch: true},
		WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	// A descriptor that is already past its validity when retrieved is
	// rejected, not returned.
	_, err = resolver.EntityDescriptor(context.Background(), entityID)
	if domain.CodeOf(err) != domain.ErrCodeInvalidMetadata {
		t.Fatalf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeInvalidMetadata)
	}
	if !errors.Is(err, domain.ErrDescriptorExpired) {
		t.Errorf("error = %v, want wrapped ErrDescriptorExpired", err)
	}
	if _, ok := cache.Get(entityID); ok {
		t.Error("expired retrieved descriptor was cached")
	}
}

func TestResolverLiveFetchValidityBound(t *testing.T) {
	var entityID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(trust.EntityDescriptorXML(entityID, time.Time{}, ""))
	}))
	defer server.Close()
	entityID = server.URL

	clock := &fakeClock{now: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)}
	resolver, err := NewResolver(NewCache(WithClock(clock)), ResolverConfig{
		AllowLiveFetch:   true,
		ValidityDuration: time.Hour,
	}, WithHTTPClient(server.Client()), WithClock(clock))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	// A retrieved descriptor without its own validity gets the configured
	// bound instead of living forever.
	rec, err := resolver.EntityDescriptor(context.Background(), entityID)
	if err != nil {
		t.Fatalf("EntityDescriptor: %v", err)
	}
	if rec.ValidUntil == nil || !rec.ValidUntil.Equal(clock.now.Add(time.Hour)) {
		t.Errorf("ValidUntil = %v, want %v", rec.ValidUntil, clock.now.Add(time.Hour))
	}
}

func TestResolverLiveFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	resolver, err := NewResolver(NewCache(), ResolverConfig{AllowLiveFetch: true},
		WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	_, err = resolver.EntityDescriptor(context.Background(), server.URL)
	if domain.CodeOf(err) != domain.ErrCodeNoMetadata {
		t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeNoMetadata)
	}
}

func TestCheckSignature(t *testing.T) {
	kp := trust.NewKeyPair(t, "federation.example.org")
	signed := kp.Sign(t, trust.EntityDescriptorXML("https://sp.example.org", time.Time{}, ""))

	cache := NewCache()
	resolver, err := NewResolver(cache, ResolverConfig{
		ValidateSignature: true,
		Anchors:           []*x509.Certificate{kp.Cert},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	resolver.Add(&domain.DescriptorRecord{EntityID: "https://sp.example.org", Raw: signed})

	if err := resolver.CheckSignature("https://sp.example.org"); err != nil {
		t.Errorf("CheckSignature over trusted signature: %v", err)
	}

	if err := resolver.CheckSignature("https://absent.example.org"); domain.CodeOf(err) != domain.ErrCodeNoMetadata {
		t.Errorf("uncached entity error code = %q", domain.CodeOf(err))
	}
}

func TestCheckSignatureUntrustedSigner(t *testing.T) {
	anchor := trust.NewKeyPair(t, "anchor.example.org")
	rogue := trust.NewKeyPair(t, "rogue.example.org")
	signed := rogue.Sign(t, trust.EntityDescriptorXML("https://sp.example.org", time.Time{}, ""))

	resolver, err := NewResolver(NewCache(), ResolverConfig{
		ValidateSignature: true,
		Anchors:           []*x509.Certificate{anchor.Cert},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	resolver.Add(&domain.DescriptorRecord{EntityID: "https://sp.example.org", Raw: signed})

	err = resolver.CheckSignature("https://sp.example.org")
	if !errors.Is(err, domain.ErrUntrustedCertificate) {
		t.Errorf("error = %v, want wrapped ErrUntrustedCertificate", err)
	}
}

func TestCheckSignatureTrustBypass(t *testing.T) {
	kp := trust.NewKeyPair(t, "anchor.example.org")
	resolver, err := NewResolver(NewCache(), ResolverConfig{
		ValidateSignature: true,
		Anchors:           []*x509.Certificate{kp.Cert},
		TrustBypass:       "https://trusted.example.org; https://also.example.org",
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	// Unsigned metadata for a bypassed identifier passes without inspection.
	resolver.Add(&domain.DescriptorRecord{
		EntityID: "https://trusted.example.org",
		Raw:      trust.EntityDescriptorXML("https://trusted.example.org", time.Time{}, ""),
	})
	if err := resolver.CheckSignature("https://trusted.example.org"); err != nil {
		t.Errorf("bypassed entity rejected: %v", err)
	}

	resolver.Add(&domain.DescriptorRecord{
		EntityID: "https://other.example.org",
		Raw:      trust.EntityDescriptorXML("https://other.example.org", time.Time{}, ""),
	})
	if err := resolver.CheckSignature("https://other.example.org"); err == nil {
		t.Error("unsigned metadata for a non-bypassed entity passed")
	}
}

// captureRecorder observes signature validation kinds.
type captureRecorder struct {
	ports.NoopMetricsRecorder
	kinds []string
}

func (c *captureRecorder) RecordSignatureValidation(kind string, success bool) {
	c.kinds = append(c.kinds, kind)
}

func TestCheckSignatureRecordsMetadataKind(t *testing.T) {
	kp := trust.NewKeyPair(t, "federation.example.org")
	signed := kp.Sign(t, trust.EntityDescriptorXML("https://sp.example.org", time.Time{}, ""))

	recorder := &captureRecorder{}
	resolver, err := NewResolver(NewCache(), ResolverConfig{
		ValidateSignature: true,
		Anchors:           []*x509.Certificate{kp.Cert},
	}, WithMetricsRecorder(recorder))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	resolver.Add(&domain.DescriptorRecord{EntityID: "https://sp.example.org", Raw: signed})

	if err := resolver.CheckSignature("https://sp.example.org"); err != nil {
		t.Fatalf("CheckSignature: %v", err)
	}
	if len(recorder.kinds) != 1 || recorder.kinds[0] != "metadata" {
		t.Errorf("recorded kinds = %v, want [metadata]", recorder.kinds)
	}
}

func TestCheckSignatureContainerFallback(t *testing.T) {
	kp := trust.NewKeyPair(t, "federation.example.org")
	signedAggregate := kp.Sign(t, trust.AggregateXML(
		trust.EntityDescriptorFragment("https://member.example.org", time.Time{}, ""),
	))

	records, err := ParseDescriptors(signedAggregate)
	if err != nil {
		t.Fatalf("ParseDescriptors: %v", err)
	}

	resolver, err := NewResolver(NewCache(), ResolverConfig{
		ValidateSignature: true,
		Anchors:           []*x509.Certificate{kp.Cert},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	resolver.Add(records[0])

	if err := resolver.CheckSignature("https://member.example.org"); err != nil {
		t.Errorf("container signature fallback failed: %v", err)
	}
}

func TestResolverRoleLookups(t *testing.T) {
	resolver, err := NewResolver(NewCache(), ResolverConfig{})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	records, err := ParseDescriptors(trust.EntityDescriptorXML("https://sp.example.org", time.Time{}, ""))
	if err != nil {
		t.Fatalf("ParseDescriptors: %v", err)
	}
	resolver.Add(records[0])

	if _, err := resolver.SPDescriptor(context.Background(), "https://sp.example.org"); err != nil {
		t.Errorf("SPDescriptor: %v", err)
	}
	if _, err := resolver.IDPDescriptor(context.Background(), "https://sp.example.org"); domain.CodeOf(err) != domain.ErrCodeInvalidMetadata {
		t.Errorf("IDPDescriptor on SP-only entity: code = %q", domain.CodeOf(err))
	}
}
