package metadata

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/testfixtures/trust"
)

func TestParseSingleDescriptor(t *testing.T) {
	validUntil := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	data := trust.EntityDescriptorXML("https://sp.example.org", validUntil, "")

	records, err := ParseDescriptors(data)
	if err != nil {
		t.Fatalf("ParseDescriptors: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.EntityID != "https://sp.example.org" {
		t.Errorf("EntityID = %q", rec.EntityID)
	}
	if rec.ValidUntil == nil || !rec.ValidUntil.Equal(validUntil) {
		t.Errorf("ValidUntil = %v, want %v", rec.ValidUntil, validUntil)
	}
	if rec.ContainerSignature != nil {
		t.Error("single unsigned document must not carry a container signature")
	}
	if domain.FirstSPDescriptor(rec.Descriptor) == nil {
		t.Error("SP role missing from parsed descriptor")
	}
}

func TestParseDescriptorWithoutValidity(t *testing.T) {
	records, err := ParseDescriptors(trust.EntityDescriptorXML("https://sp.example.org", time.Time{}, ""))
	if err != nil {
		t.Fatalf("ParseDescriptors: %v", err)
	}
	if records[0].ValidUntil != nil {
		t.Errorf("ValidUntil = %v, want nil", records[0].ValidUntil)
	}
}

func TestParseAggregate(t *testing.T) {
	data := trust.AggregateXML(
		trust.EntityDescriptorFragment("https://a.example.org", time.Time{}, ""),
		trust.EntityDescriptorFragment("https://b.example.org", time.Time{}, ""),
	)

	records, err := ParseDescriptors(data)
	if err != nil {
		t.Fatalf("ParseDescriptors: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].EntityID != "https://a.example.org" || records[1].EntityID != "https://b.example.org" {
		t.Errorf("entity order = %q, %q", records[0].EntityID, records[1].EntityID)
	}
	for _, rec := range records {
		if rec.ContainerSignature != nil {
			t.Errorf("%s: unsigned aggregate must not set a container signature", rec.EntityID)
		}
	}
}

func TestParseNestedAggregate(t *testing.T) {
	inner := fmt.Sprintf(`<md:EntitiesDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata">
  %s
</md:EntitiesDescriptor>`, trust.EntityDescriptorFragment("https://inner.example.org", time.Time{}, ""))
	data := trust.AggregateXML(
		trust.EntityDescriptorFragment("https://outer.example.org", time.Time{}, ""),
		inner,
	)

	records, err := ParseDescriptors(data)
	if err != nil {
		t.Fatalf("ParseDescriptors: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestParseSignedAggregateKeepsContainerSignature(t *testing.T) {
	kp := trust.NewKeyPair(t, "federation.example.org")
	data := kp.Sign(t, trust.AggregateXML(
		trust.EntityDescriptorFragment("https://member.example.org", time.Time{}, ""),
	))

	records, err := ParseDescriptors(data)
	if err != nil {
		t.Fatalf("ParseDescriptors: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].ContainerSignature == nil {
		t.Fatal("member of a signed aggregate must keep the container bytes")
	}
	// Signing canonicalizes the aggregate, leaving members without their
	// own namespace declarations; extraction must restore them.
	if domain.FirstSPDescriptor(records[0].Descriptor) == nil {
		t.Error("SP role missing from extracted member")
	}
	if !bytes.Contains(records[0].Raw, []byte("urn:oasis:names:tc:SAML:2.0:metadata")) {
		t.Errorf("extracted member lacks its namespace declaration: %s", records[0].Raw)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing entityID", `<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"/>`},
		{"unexpected root", `<NotMetadata/>`},
		{"empty aggregate", `<md:EntitiesDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"/>`},
		{"bad validUntil", `<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://x.example.org" validUntil="not-a-date"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptors([]byte(tt.data))
			if domain.CodeOf(err) != domain.ErrCodeParse {
				t.Errorf("error code = %q, want %q", domain.CodeOf(err), domain.ErrCodeParse)
			}
		})
	}
}
