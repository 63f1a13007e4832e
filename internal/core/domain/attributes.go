package domain

import "strings"

// AttributeStatus is the per-attribute availability marker carried on the
// wire by the STORK profile and mirrored into the model for both profiles.
type AttributeStatus string

const (
	StatusAvailable    AttributeStatus = "Available"
	StatusNotAvailable AttributeStatus = "NotAvailable"
	StatusWithheld     AttributeStatus = "Withheld"
)

// StatusFromBool maps the availability flag to its wire value.
func StatusFromBool(available bool) AttributeStatus {
	if available {
		return StatusAvailable
	}
	return StatusNotAvailable
}

// PersonalAttribute is a single identity attribute exchanged between
// federation parties. Name is the friendly short name; the full wire name is
// resolved by the active extension codec at encode time.
type PersonalAttribute struct {
	Name       string
	Required   bool
	Values     []string
	ComplexVal map[string]string
	Status     AttributeStatus
}

// IsEmpty reports whether the attribute carries no value of either shape.
func (a *PersonalAttribute) IsEmpty() bool {
	return len(a.Values) == 0 && len(a.ComplexVal) == 0
}

// Copy returns a deep copy so list snapshots cannot alias caller state.
func (a *PersonalAttribute) Copy() PersonalAttribute {
	out := PersonalAttribute{
		Name:     a.Name,
		Required: a.Required,
		Status:   a.Status,
	}
	if len(a.Values) > 0 {
		out.Values = append([]string(nil), a.Values...)
	}
	if len(a.ComplexVal) > 0 {
		out.ComplexVal = make(map[string]string, len(a.ComplexVal))
		for k, v := range a.ComplexVal {
			out.ComplexVal[k] = v
		}
	}
	return out
}

// PersonalAttributeList is an ordered collection of personal attributes.
// Insertion order is preserved on iteration and serialization. Duplicate
// names are permitted and kept in order; Get returns the first occurrence.
// Mutation goes through explicit methods so callers never reach into the
// backing slice.
type PersonalAttributeList struct {
	items []PersonalAttribute
}

// NewPersonalAttributeList returns a list seeded with the given attributes.
func NewPersonalAttributeList(attrs ...PersonalAttribute) *PersonalAttributeList {
	l := &PersonalAttributeList{}
	for _, a := range attrs {
		l.Add(a)
	}
	return l
}

// Add appends an attribute, preserving insertion order.
func (l *PersonalAttributeList) Add(a PersonalAttribute) {
	l.items = append(l.items, a.Copy())
}

// Get returns a copy of the first attribute with the given name.
func (l *PersonalAttributeList) Get(name string) (PersonalAttribute, bool) {
	for i := range l.items {
		if l.items[i].Name == name {
			return l.items[i].Copy(), true
		}
	}
	return PersonalAttribute{}, false
}

// Contains reports whether any attribute with the given name is present.
func (l *PersonalAttributeList) Contains(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// SetValues replaces the simple values of the first attribute with the given
// name. Returns false if the name is absent.
func (l *PersonalAttributeList) SetValues(name string, values []string) bool {
	for i := range l.items {
		if l.items[i].Name == name {
			l.items[i].Values = append([]string(nil), values...)
			l.items[i].ComplexVal = nil
			return true
		}
	}
	return false
}

// SetStatus updates the availability status of the first attribute with the
// given name. Returns false if the name is absent.
func (l *PersonalAttributeList) SetStatus(name string, status AttributeStatus) bool {
	for i := range l.items {
		if l.items[i].Name == name {
			l.items[i].Status = status
			return true
		}
	}
	return false
}

// Remove deletes every attribute with the given name and reports whether at
// least one was removed.
func (l *PersonalAttributeList) Remove(name string) bool {
	kept := l.items[:0]
	removed := false
	for _, a := range l.items {
		if a.Name == name {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	l.items = kept
	return removed
}

// Replace substitutes the first attribute with the given name by the
// supplied attribute, keeping its position. Returns false if absent.
func (l *PersonalAttributeList) Replace(name string, a PersonalAttribute) bool {
	for i := range l.items {
		if l.items[i].Name == name {
			l.items[i] = a.Copy()
			return true
		}
	}
	return false
}

// Len returns the number of attributes, duplicates included.
func (l *PersonalAttributeList) Len() int {
	return len(l.items)
}

// All returns a deep-copied snapshot in insertion order.
func (l *PersonalAttributeList) All() []PersonalAttribute {
	out := make([]PersonalAttribute, 0, len(l.items))
	for i := range l.items {
		out = append(out, l.items[i].Copy())
	}
	return out
}

// Copy returns an independent deep copy of the whole list.
func (l *PersonalAttributeList) Copy() *PersonalAttributeList {
	out := &PersonalAttributeList{items: make([]PersonalAttribute, 0, len(l.items))}
	for i := range l.items {
		out.items = append(out.items, l.items[i].Copy())
	}
	return out
}

// ShortName returns the segment of a full attribute URI after the last '/'.
// Names without a slash pass through unchanged.
func ShortName(fullName string) string {
	if i := strings.LastIndex(fullName, "/"); i >= 0 {
		return fullName[i+1:]
	}
	return fullName
}

// IsLatinScript reports whether every rune of s is within the basic Latin
// repertoire used by transliterated attribute values. Values failing this
// check are flagged on the wire so relying parties know a transliterated
// variant may follow.
func IsLatinScript(s string) bool {
	for _, r := range s {
		if r > 'ɏ' {
			return false
		}
	}
	return true
}
