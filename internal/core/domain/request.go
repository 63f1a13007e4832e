package domain

// Format identifies the attribute-extension dialect a message is encoded in.
type Format string

const (
	FormatEidas Format = "eidas"
	FormatStork Format = "stork"
)

// SPType constrains which sector of service providers a request originates
// from. Carried by the eIDAS dialect only.
type SPType string

const (
	SPTypePublic  SPType = "public"
	SPTypePrivate SPType = "private"
)

// RequestPayload is the profile-neutral content of an authentication
// request's extensions block. Both codecs decode into and encode from this
// shape; fields a dialect does not carry stay at their zero value.
type RequestPayload struct {
	// Attributes requested from the remote party, in wire order.
	Attributes *PersonalAttributeList

	// Issuer and destination entity identifiers, used for derived
	// identifier construction and metadata resolution.
	Issuer      string
	Destination string

	// OriginCountry and DestinationCountry are the two-letter codes the
	// cross-border identifier derivation is built from.
	OriginCountry      string
	DestinationCountry string

	// Eidas dialect side channel.
	SPType           SPType
	LevelOfAssurance string

	// Stork dialect side channel. Pointer and string fields are emitted
	// only when supplied.
	QAALevel            int
	SPSector            string
	SPApplication       string
	SPCountry           string
	EIDSectorShare      *bool
	EIDCrossSectorShare *bool
	EIDCrossBorderShare *bool
}

// Copy returns a deep copy of the payload.
func (r *RequestPayload) Copy() *RequestPayload {
	out := *r
	if r.Attributes != nil {
		out.Attributes = r.Attributes.Copy()
	}
	out.EIDSectorShare = copyBool(r.EIDSectorShare)
	out.EIDCrossSectorShare = copyBool(r.EIDCrossSectorShare)
	out.EIDCrossBorderShare = copyBool(r.EIDCrossBorderShare)
	return &out
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
