package extension

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// eidasStaticCatalogue is the built-in attribute set of the eIDAS dialect.
var eidasStaticCatalogue = []string{
	"PersonIdentifier",
	"CurrentFamilyName",
	"CurrentGivenName",
	"DateOfBirth",
	"BirthName",
	"PlaceOfBirth",
	"CurrentAddress",
	"Gender",
	"LegalPersonIdentifier",
	"LegalName",
	"LegalAddress",
	"VATRegistration",
	"TaxReference",
}

// EidasCodec speaks the eIDAS request dialect: attribute names under the
// eIDAS base URI, an SPType side channel, and levels of assurance expressed
// as class references under the LoA prefix.
type EidasCodec struct {
	codecBase
}

// NewEidasCodec creates the eIDAS dialect codec.
func NewEidasCodec(cfg CodecConfig) *EidasCodec {
	return &EidasCodec{codecBase{
		cfg:     cfg,
		prefix:  EidasBaseURI,
		baseURI: EidasBaseURI,
	}}
}

// Format identifies the dialect this codec speaks.
func (c *EidasCodec) Format() domain.Format {
	return domain.FormatEidas
}

// EncodeRequest renders the payload as a fresh extensions element.
func (c *EidasCodec) EncodeRequest(req *domain.RequestPayload) (*etree.Element, error) {
	ext := newExtensionsElement()
	ext.CreateAttr("xmlns:eidas", EidasNaturalPersonNS)

	if req.SPType != "" {
		ext.CreateElement("eidas:SPType").SetText(string(req.SPType))
	}
	if req.LevelOfAssurance != "" {
		loa := req.LevelOfAssurance
		if !IsLoAClassRef(loa) {
			loa = LoAPrefix + strings.ToLower(loa)
		}
		ext.CreateElement("eidas:LevelOfAssurance").SetText(loa)
	}
	if err := c.encodeRequestedAttributes(ext, req.Attributes); err != nil {
		return nil, err
	}
	return ext, nil
}

// DecodeRequest reads a request's extensions element into the neutral
// payload. The requested-attributes block is mandatory; the side channels
// are read only when present.
func (c *EidasCodec) DecodeRequest(extensions *etree.Element) (*domain.RequestPayload, error) {
	if extensions == nil {
		return nil, domain.ValidationError("no extensions element", nil)
	}

	attrs, err := c.decodeRequestedAttributes(extensions)
	if err != nil {
		return nil, err
	}
	req := &domain.RequestPayload{Attributes: attrs}

	if spType := findDescendant(extensions, "SPType"); spType != nil {
		req.SPType = domain.SPType(strings.TrimSpace(spType.Text()))
	}
	req.LevelOfAssurance = extractLoA(extensions)
	return req, nil
}

// SupportedAttributes returns the friendly names this codec can encode.
func (c *EidasCodec) SupportedAttributes() map[string]struct{} {
	out := make(map[string]struct{}, len(eidasStaticCatalogue))
	for _, name := range eidasStaticCatalogue {
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
// eIDAS dialect: an SPType side channel, a level of assurance, or attribute
// names under the eIDAS base URI.
func (c *EidasCodec) IsValidRequest(doc *etree.Document) bool {
	root := doc.Root()
	if root == nil {
		return false
	}
	ext := extensionsOf(root)
	if ext == nil {
		return false
	}
	if findDescendant(ext, "SPType") != nil {
		return true
	}
	if extractLoA(ext) != "" {
		return true
	}
	return hasAttributeWithPrefix(ext, EidasBaseURI)
}

// extractLoA finds a level of assurance anywhere under el: a dedicated
// element or an authn-context class reference under the LoA prefix.
func extractLoA(el *etree.Element) string {
	if loa := findDescendant(el, "LevelOfAssurance"); loa != nil {
		if v := strings.TrimSpace(loa.Text()); IsLoAClassRef(v) {
			return v
		}
	}
	var found string
	walkElements(el, func(e *etree.Element) {
		if found == "" && e.Tag == "AuthnContextClassRef" && IsLoAClassRef(strings.TrimSpace(e.Text())) {
			found = strings.TrimSpace(e.Text())
		}
	})
	return found
}

// newExtensionsElement creates the extensions container with the dialect
// namespaces declared.
func newExtensionsElement() *etree.Element {
	ext := etree.NewElement("saml2p:Extensions")
	ext.CreateAttr("xmlns:saml2p", "urn:oasis:names:tc:SAML:2.0:protocol")
	ext.CreateAttr("xmlns:stork", StorkAssertionNS)
	ext.CreateAttr("xmlns:storkp", StorkProtocolNS)
	return ext
}

// extensionsOf returns the document's extensions element, which may be the
// root itself or a descendant.
func extensionsOf(root *etree.Element) *etree.Element {
	if root.Tag == "Extensions" {
		return root
	}
	return findDescendant(root, "Extensions")
}

func hasAttributeWithPrefix(ext *etree.Element, baseURI string) bool {
	block := findDescendant(ext, "RequestedAttributes")
	if block == nil {
		return false
	}
	for _, el := range block.ChildElements() {
		if el.Tag != "RequestedAttribute" {
			continue
		}
		if strings.HasPrefix(el.SelectAttrValue("Name", ""), baseURI) {
			return true
		}
	}
	return false
}

func walkElements(el *etree.Element, fn func(*etree.Element)) {
	for _, child := range el.ChildElements() {
		fn(child)
		walkElements(child, fn)
	}
}

var _ ports.ExtensionCodec = (*EidasCodec)(nil)
