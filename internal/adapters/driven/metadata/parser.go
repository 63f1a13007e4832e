package metadata

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"

	"github.com/willp-bl/eidas-mirror-sub004/internal/adapters/driven/xmlsec"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// ParseDescriptors reads a metadata document into descriptor records. The
// document may be a single EntityDescriptor or an EntitiesDescriptor
// aggregate, including nested aggregates; every contained entity yields its
// own record.
//
// When an aggregate is signed and a contained entity carries no signature of
// its own, the record keeps the whole signed document so trust checks can
// fall back to the container's signature.
func ParseDescriptors(data []byte) ([]*domain.DescriptorRecord, error) {
	doc, err := xmlsec.Parse(data)
	if err != nil {
		return nil, err
	}

	root := doc.Root()
	switch root.Tag {
	case "EntityDescriptor":
		rec, err := recordFromElement(root, data, nil)
		if err != nil {
			return nil, err
		}
		return []*domain.DescriptorRecord{rec}, nil
	case "EntitiesDescriptor":
		var records []*domain.DescriptorRecord
		if err := collectFromAggregate(root, data, &records); err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, domain.ParseError("aggregate holds no entity descriptors", nil)
		}
		return records, nil
	default:
		return nil, domain.ParseError(fmt.Sprintf("unexpected root element %q", root.Tag), nil)
	}
}

func collectFromAggregate(aggregate *etree.Element, fileData []byte, out *[]*domain.DescriptorRecord) error {
	var containerSig []byte
	if hasChild(aggregate, "Signature") {
		containerSig = fileData
	}
	for _, child := range aggregate.ChildElements() {
		switch child.Tag {
		case "EntityDescriptor":
			rec, err := recordFromElement(child, nil, containerSig)
			if err != nil {
				return err
			}
			*out = append(*out, rec)
		case "EntitiesDescriptor":
			if err := collectFromAggregate(child, fileData, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordFromElement builds one record from an EntityDescriptor element. raw
// is the original serialization when the element was the whole document;
// otherwise the element is re-serialized standalone.
func recordFromElement(el *etree.Element, raw, containerSig []byte) (*domain.DescriptorRecord, error) {
	entityID := el.SelectAttrValue("entityID", "")
	if entityID == "" {
		return nil, domain.ParseError("entity descriptor lacks an entityID", nil)
	}

	if raw == nil {
		var err error
		raw, err = xmlsec.SerializeElement(withInheritedNamespaces(el), true)
		if err != nil {
			return nil, err
		}
	}

	var desc saml.EntityDescriptor
	if err := xml.Unmarshal(raw, &desc); err != nil {
		return nil, domain.ParseError(fmt.Sprintf("entity descriptor %q does not parse", entityID), err)
	}

	rec := &domain.DescriptorRecord{
		EntityID:   entityID,
		Raw:        raw,
		Descriptor: &desc,
	}
	if vu := el.SelectAttrValue("validUntil", ""); vu != "" {
		t, err := time.Parse(time.RFC3339, vu)
		if err != nil {
			return nil, domain.ParseError(fmt.Sprintf("validUntil %q does not parse", vu), err)
		}
		rec.ValidUntil = &t
	}
	if containerSig != nil && !hasChild(el, "Signature") {
		rec.ContainerSignature = containerSig
	}
	return rec, nil
}

// withInheritedNamespaces returns a standalone copy of el that redeclares
// every namespace in scope on el but declared only on an ancestor. An
// aggregate member extracted without them would serialize with prefixes
// nothing declares, which a namespace-aware reader rejects.
func withInheritedNamespaces(el *etree.Element) *etree.Element {
	out := el.Copy()
	declared := make(map[string]bool)
	for _, attr := range out.Attr {
		if isNamespaceDecl(attr) {
			declared[attr.FullKey()] = true
		}
	}
	for parent := el.Parent(); parent != nil; parent = parent.Parent() {
		for _, attr := range parent.Attr {
			if !isNamespaceDecl(attr) || declared[attr.FullKey()] {
				continue
			}
			declared[attr.FullKey()] = true
			out.CreateAttr(attr.FullKey(), attr.Value)
		}
	}
	return out
}

func isNamespaceDecl(attr etree.Attr) bool {
	return attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns")
}

func hasChild(el *etree.Element, local string) bool {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return true
		}
	}
	return false
}
