package extension

import (
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// Wire constants shared by the two dialects. Both use the STORK extension
// namespaces; what differs is the attribute base URI and the side-channel
// elements.
const (
	StorkAssertionNS = "urn:eu:stork:names:tc:STORK:1.0:assertion"
	StorkProtocolNS  = "urn:eu:stork:names:tc:STORK:1.0:protocol"

	EidasNaturalPersonNS = "http://eidas.europa.eu/attributes/naturalperson"

	// EidasBaseURI prefixes eIDAS attribute wire names.
	EidasBaseURI = "http://eidas.europa.eu/attributes/naturalperson/"
	// StorkBaseURI prefixes STORK attribute wire names.
	StorkBaseURI = "http://www.stork.gov.eu/1.0/"

	// LoAPrefix marks an authn-context class reference as an eIDAS level
	// of assurance. Matching is case-insensitive.
	LoAPrefix = "http://eidas.europa.eu/loa/"

	uriNameFormat      = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"
	signedDocShortName = "signedDoc"
)

// IsLoAClassRef reports whether an authn-context class reference carries an
// eIDAS level of assurance.
func IsLoAClassRef(classRef string) bool {
	return len(classRef) >= len(LoAPrefix) &&
		strings.EqualFold(classRef[:len(LoAPrefix)], LoAPrefix)
}

// CodecConfig carries everything a codec needs beyond its dialect: the
// engine property table for wire-name lookup, the dynamic registry, and the
// emission toggles.
type CodecConfig struct {
	// Properties is the engine property table. Wire names resolve against
	// it before and after the dynamic registry.
	Properties map[string]string

	// Registry is the dynamic attribute registry; nil means none.
	Registry *Registry

	// EmitFriendlyName includes the friendly name on encoded attributes.
	EmitFriendlyName bool

	// EmitIsRequired includes the isRequired marker on encoded attributes.
	EmitIsRequired bool

	Logger *zap.Logger
}

// codecBase holds the behavior the two dialects share: wire-name
// resolution, requested-attribute encoding and decoding, and the
// transliteration marker.
type codecBase struct {
	cfg       CodecConfig
	prefix    string
	baseURI   string
	withState bool
}

// resolveWireName maps a friendly name to the full name that goes on the
// wire. Resolution order: the dialect-prefixed engine property, the dynamic
// registry, the bare engine property.
func (c *codecBase) resolveWireName(name string) (string, error) {
	if full, ok := c.cfg.Properties[c.prefix+name]; ok && full != "" {
		return full, nil
	}
	if c.cfg.Registry != nil {
		if full, ok := c.cfg.Registry.FullName(name); ok {
			return full, nil
		}
	}
	if full, ok := c.cfg.Properties[name]; ok && full != "" {
		return full, nil
	}
	return "", domain.AttributeNotFoundError(name)
}

// encodeRequestedAttributes renders the payload's attribute list as a
// storkp:RequestedAttributes element under parent.
func (c *codecBase) encodeRequestedAttributes(parent *etree.Element, list *domain.PersonalAttributeList) error {
	block := parent.CreateElement("storkp:RequestedAttributes")
	if list == nil {
		return nil
	}
	for _, attr := range list.All() {
		full, err := c.resolveWireName(attr.Name)
		if err != nil {
			return err
		}
		el := block.CreateElement("stork:RequestedAttribute")
		el.CreateAttr("Name", full)
		el.CreateAttr("NameFormat", uriNameFormat)
		if c.cfg.EmitFriendlyName {
			el.CreateAttr("FriendlyName", attr.Name)
		}
		if c.cfg.EmitIsRequired {
			if attr.Required {
				el.CreateAttr("isRequired", "true")
			} else {
				el.CreateAttr("isRequired", "false")
			}
		}
		if c.withState && attr.Status != "" {
			el.CreateAttr("AttributeStatus", string(attr.Status))
		}
		for _, value := range attr.Values {
			ve := el.CreateElement("stork:AttributeValue")
			ve.SetText(value)
			if !domain.IsLatinScript(value) {
				ve.CreateAttr("LatinScript", "false")
			}
		}
		for key, value := range attr.ComplexVal {
			ve := el.CreateElement("stork:AttributeValue")
			ve.CreateElement("stork:" + key).SetText(value)
		}
	}
	return nil
}

// decodeRequestedAttributes reads the requested-attributes block out of an
// extensions element. The block is mandatory.
func (c *codecBase) decodeRequestedAttributes(extensions *etree.Element) (*domain.PersonalAttributeList, error) {
	block := findDescendant(extensions, "RequestedAttributes")
	if block == nil {
		return nil, domain.ValidationError("extensions carry no requested attributes",
			domain.ErrRequestedAttributesMissing)
	}

	list := domain.NewPersonalAttributeList()
	for _, el := range block.ChildElements() {
		if el.Tag != "RequestedAttribute" {
			continue
		}
		full := el.SelectAttrValue("Name", "")
		if full == "" {
			return nil, domain.ValidationError("requested attribute lacks a name", nil)
		}
		attr := domain.PersonalAttribute{
			Name:     domain.ShortName(full),
			Required: el.SelectAttrValue("isRequired", "") == "true",
			Status:   domain.AttributeStatus(el.SelectAttrValue("AttributeStatus", "")),
		}
		for _, ve := range el.ChildElements() {
			if ve.Tag != "AttributeValue" {
				continue
			}
			if err := c.decodeValue(full, ve, &attr); err != nil {
				return nil, err
			}
		}
		list.Add(attr)
	}
	return list, nil
}

// decodeValue reads one attribute value into attr. Signed-document values
// may arrive as embedded XML; those are re-serialized without the
// declaration so the caller always sees a string. Other structured values
// become key-value pairs.
func (c *codecBase) decodeValue(fullName string, ve *etree.Element, attr *domain.PersonalAttribute) error {
	children := ve.ChildElements()
	if len(children) == 0 {
		attr.Values = append(attr.Values, ve.Text())
		return nil
	}
	if fullName == c.baseURI+signedDocShortName {
		raw, err := xmlsec.SerializeElement(children[0], true)
		if err != nil {
			return err
		}
		attr.Values = append(attr.Values, string(raw))
		return nil
	}
	if attr.ComplexVal == nil {
		attr.ComplexVal = make(map[string]string, len(children))
	}
	for _, child := range children {
		attr.ComplexVal[child.Tag] = child.Text()
	}
	return nil
}

func findDescendant(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
		if found := findDescendant(child, local); found != nil {
			return found
		}
	}
	return nil
}

func childText(el *etree.Element, local string) (string, bool) {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child.Text(), true
		}
	}
	return "", false
}
