// Package xmlsec is the security boundary for XML documents: hardened
// parsing and serialization, enveloped signature production, and signature
// validation against an explicit trust anchor set.
package xmlsec

import (
	"bytes"

	"github.com/beevik/etree"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

var (
	doctypeMarker = []byte("<!DOCTYPE")
	entityMarker  = []byte("<!ENTITY")
)

// Parse reads untrusted XML into a document. Inputs carrying a DOCTYPE
// declaration or entity definitions are rejected outright rather than
// stripped, so external-entity payloads fail loudly.
func Parse(data []byte) (*etree.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.ParseError("empty document", nil)
	}
	if bytes.Contains(data, doctypeMarker) || bytes.Contains(data, entityMarker) {
		return nil, domain.ParseError("document type definitions are not accepted", nil)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, domain.ParseError("malformed XML", err)
	}
	if doc.Root() == nil {
		return nil, domain.ParseError("document has no root element", nil)
	}
	return doc, nil
}

// Serialize writes the document as UTF-8 bytes. No process-wide state is
// consulted; the same document always yields the same bytes.
func Serialize(doc *etree.Document) ([]byte, error) {
	if doc == nil || doc.Root() == nil {
		return nil, domain.SerializeError("document has no root element", nil)
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, domain.SerializeError("failed to write document", err)
	}
	return out, nil
}

// SerializeElement writes a single element subtree. With omitDecl the XML
// declaration is left out, the form embedded attribute values use.
func SerializeElement(el *etree.Element, omitDecl bool) ([]byte, error) {
	if el == nil {
		return nil, domain.SerializeError("nil element", nil)
	}
	doc := etree.NewDocument()
	if !omitDecl {
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	}
	doc.SetRoot(el.Copy())
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, domain.SerializeError("failed to write element", err)
	}
	return out, nil
}
