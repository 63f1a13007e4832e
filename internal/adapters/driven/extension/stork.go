package extension

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// storkStaticCatalogue is the built-in attribute set of the STORK dialect.
var storkStaticCatalogue = []string{
	"eIdentifier",
	"givenName",
	"surname",
	"inheritedFamilyName",
	"dateOfBirth",
	"countryCodeOfBirth",
	"age",
	"isAgeOver",
	"gender",
	"eMail",
	"fiscalNumber",
	"nationalityCode",
	"canonicalResidenceAddress",
	"textResidenceAddress",
	"signedDoc",
}

const qaaElementName = "QualityAuthenticationAssuranceLevel"

// StorkCodec speaks the STORK 1.0 request dialect: attribute names under
// the STORK base URI, a numeric quality level, service-provider descriptors
// and the sector-sharing consent flags.
type StorkCodec struct {
	codecBase
}

// NewStorkCodec creates the STORK dialect codec. STORK wire names resolve
// through the bare engine properties, so the dialect prefix is empty.
func NewStorkCodec(cfg CodecConfig) *StorkCodec {
	return &StorkCodec{codecBase{
		cfg:       cfg,
		prefix:    "",
		baseURI:   StorkBaseURI,
		withState: true,
	}}
}

// Format identifies the dialect this codec speaks.
func (c *StorkCodec) Format() domain.Format {
	return domain.FormatStork
}

// EncodeRequest renders the payload as a fresh extensions element. The
// quality level is emitted only when positive; the string descriptors and
// consent flags only when supplied.
func (c *StorkCodec) EncodeRequest(req *domain.RequestPayload) (*etree.Element, error) {
	ext := newExtensionsElement()

	if req.QAALevel > 0 {
		ext.CreateElement("stork:" + qaaElementName).SetText(strconv.Itoa(req.QAALevel))
	}
	if req.SPSector != "" {
		ext.CreateElement("stork:spSector").SetText(req.SPSector)
	}
	if req.SPApplication != "" {
		ext.CreateElement("stork:spApplication").SetText(req.SPApplication)
	}
	if req.SPCountry != "" {
		ext.CreateElement("stork:spCountry").SetText(req.SPCountry)
	}
	writeConsentFlag(ext, "storkp:eIDSectorShare", req.EIDSectorShare)
	writeConsentFlag(ext, "storkp:eIDCrossSectorShare", req.EIDCrossSectorShare)
	writeConsentFlag(ext, "storkp:eIDCrossBorderShare", req.EIDCrossBorderShare)

	if err := c.encodeRequestedAttributes(ext, req.Attributes); err != nil {
		return nil, err
	}
	return ext, nil
}

// DecodeRequest reads a request's extensions element into the neutral
// payload.
func (c *StorkCodec) DecodeRequest(extensions *etree.Element) (*domain.RequestPayload, error) {
	if extensions == nil {
		return nil, domain.ValidationError("no extensions element", nil)
	}

	attrs, err := c.decodeRequestedAttributes(extensions)
	if err != nil {
		return nil, err
	}
	req := &domain.RequestPayload{Attributes: attrs}

	if text, ok := childText(extensions, qaaElementName); ok {
		qaa, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return nil, domain.ValidationError("quality level is not numeric", err)
		}
		req.QAALevel = qaa
	}
	if text, ok := childText(extensions, "spSector"); ok {
		req.SPSector = text
	}
	if text, ok := childText(extensions, "spApplication"); ok {
		req.SPApplication = text
	}
	if text, ok := childText(extensions, "spCountry"); ok {
		req.SPCountry = text
	}
	req.EIDSectorShare = readConsentFlag(extensions, "eIDSectorShare")
	req.EIDCrossSectorShare = readConsentFlag(extensions, "eIDCrossSectorShare")
	req.EIDCrossBorderShare = readConsentFlag(extensions, "eIDCrossBorderShare")
	return req, nil
}

// SupportedAttributes returns the friendly names this codec can encode.
func (c *StorkCodec) SupportedAttributes() map[string]struct{} {
	out := make(map[string]struct{}, len(storkStaticCatalogue))
	for _, name := range storkStaticCatalogue {
		out[name] = struct{}{}
	}
	if c.cfg.Registry != nil {
		for _, name := range c.cfg.Registry.FriendlyNames() {
			out[name] = struct{}{}
		}
	}
	return out
}

// IsValidRequest reports whether the document's extensions look like the
// STORK dialect: a quality level element or attribute names under the
// STORK base URI.
func (c *StorkCodec) IsValidRequest(doc *etree.Document) bool {
	root := doc.Root()
	if root == nil {
		return false
	}
	ext := extensionsOf(root)
	if ext == nil {
		return false
	}
	if findDescendant(ext, qaaElementName) != nil {
		return true
	}
	return hasAttributeWithPrefix(ext, StorkBaseURI)
}

func writeConsentFlag(parent *etree.Element, name string, value *bool) {
	if value == nil {
		return
	}
	parent.CreateElement(name).SetText(strconv.FormatBool(*value))
}

func readConsentFlag(extensions *etree.Element, local string) *bool {
	text, ok := childText(extensions, local)
	if !ok {
		return nil
	}
	v := strings.TrimSpace(text) == "true"
	return &v
}

var _ ports.ExtensionCodec = (*StorkCodec)(nil)
