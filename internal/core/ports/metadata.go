package ports

import (
	"context"

	"github.com/crewjam/saml"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// MetadataCache is the port interface for the concurrent descriptor cache.
type MetadataCache interface {
	// Get returns the cached entry for an entity identifier.
	Get(entityID string) (domain.CachedEntry, bool)

	// Put stores a descriptor under its identifier. A nil record removes
	// the entry; removing an absent entry is a no-op.
	Put(entityID string, record *domain.DescriptorRecord, origin domain.Origin)

	// Origin reports how the entry for entityID entered the cache.
	Origin(entityID string) (domain.Origin, bool)

	// IDs returns the identifiers currently cached, in no particular order.
	IDs() []string
}

// MetadataResolver is the port interface for trust-aware descriptor lookup.
type MetadataResolver interface {
	// EntityDescriptor resolves an identifier to a currently valid
	// descriptor, consulting the cache first and fetching live when
	// permitted. An empty identifier yields neither a record nor an
	// error; it means the caller has metadata processing turned off.
	EntityDescriptor(ctx context.Context, entityID string) (*domain.DescriptorRecord, error)

	// SPDescriptor returns the first service-provider role of the entity.
	SPDescriptor(ctx context.Context, entityID string) (*saml.SPSSODescriptor, error)

	// IDPDescriptor returns the first identity-provider role of the entity.
	IDPDescriptor(ctx context.Context, entityID string) (*saml.IDPSSODescriptor, error)

	// CheckSignature validates the enveloped signature of the entity's
	// cached descriptor bytes against the resolver's trust anchors.
	CheckSignature(entityID string) error
}

// ChangeListener receives structured reconciliation events from a metadata
// source. Sources never reach into the cache directly.
type ChangeListener interface {
	// Add makes the record available under its entity identifier.
	Add(record *domain.DescriptorRecord)

	// Remove withdraws the identifier from availability.
	Remove(entityID string)
}
