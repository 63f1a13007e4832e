package domain

import (
	"time"

	"github.com/crewjam/saml"
)

// Origin records how a descriptor entered the cache.
type Origin string

const (
	// OriginStatic marks descriptors loaded from the configured directory.
	OriginStatic Origin = "static"
	// OriginDynamic marks descriptors retrieved live from their entity URL.
	OriginDynamic Origin = "dynamic"
)

// RoleKind selects which role descriptor of an entity a caller wants.
type RoleKind string

const (
	RoleServiceProvider  RoleKind = "sp"
	RoleIdentityProvider RoleKind = "idp"
)

// DescriptorRecord is one parsed entity descriptor together with the exact
// bytes it was parsed from. Raw is kept because signature validation must
// run over the original serialization, never a re-emission.
type DescriptorRecord struct {
	EntityID   string
	Raw        []byte
	Descriptor *saml.EntityDescriptor

	// ValidUntil is nil when the document declares no validity bound.
	ValidUntil *time.Time

	// ContainerSignature holds the enveloping aggregate's signed bytes when
	// this descriptor was extracted from a signed EntitiesDescriptor and
	// carries no signature of its own. Trust checks fall back to it.
	ContainerSignature []byte
}

// IsValidAt reports whether the record's validity window covers t.
// Records without a ValidUntil never expire.
func (r *DescriptorRecord) IsValidAt(t time.Time) bool {
	if r.ValidUntil == nil {
		return true
	}
	return !t.After(*r.ValidUntil)
}

// CachedEntry is a DescriptorRecord as held by the metadata cache.
type CachedEntry struct {
	Record     *DescriptorRecord
	Origin     Origin
	InsertedAt time.Time
}

// FirstSPDescriptor returns the first service-provider role of the entity,
// or nil. Multiple roles of the same kind are never merged; callers get
// exactly what the publishing party listed first.
func FirstSPDescriptor(desc *saml.EntityDescriptor) *saml.SPSSODescriptor {
	if desc == nil || len(desc.SPSSODescriptors) == 0 {
		return nil
	}
	return &desc.SPSSODescriptors[0]
}

// FirstIDPDescriptor returns the first identity-provider role of the entity,
// or nil.
func FirstIDPDescriptor(desc *saml.EntityDescriptor) *saml.IDPSSODescriptor {
	if desc == nil || len(desc.IDPSSODescriptors) == 0 {
		return nil
	}
	return &desc.IDPSSODescriptors[0]
}
