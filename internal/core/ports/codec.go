package ports

import (
	"github.com/beevik/etree"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// ExtensionCodec translates between the profile-neutral request payload and
// one wire dialect's extensions element. Implementations are selected by
// configuration and injected; callers never branch on the dialect.
type ExtensionCodec interface {
	// Format identifies the dialect this codec speaks.
	Format() domain.Format

	// DecodeRequest reads a request's extensions element into the neutral
	// payload. The requested-attributes block is mandatory.
	DecodeRequest(extensions *etree.Element) (*domain.RequestPayload, error)

	// EncodeRequest renders the payload as a fresh extensions element.
	// Attribute names that resolve to no wire name fail the whole encode.
	EncodeRequest(req *domain.RequestPayload) (*etree.Element, error)

	// SupportedAttributes returns the friendly names this codec can encode,
	// the static catalogue joined with the dynamic registry.
	SupportedAttributes() map[string]struct{}

	// IsValidRequest reports whether the document's extensions look like
	// this codec's dialect.
	IsValidRequest(doc *etree.Document) bool
}
