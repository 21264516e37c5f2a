package ir

import "slices"

// SemanticData is the assertion set for one subject.
//
// Values for a property are kept de-duplicated by canonical key, in
// insertion order. Once a SemanticData has been handed to the store it
// should be treated as immutable; callers that need a variation take a
// Clone.
type SemanticData struct {
	subject Subject
	values  map[string][]DataItem
}

// NewSemanticData creates an empty assertion set for s.
func NewSemanticData(s Subject) *SemanticData {
	return &SemanticData{
		subject: s,
		values:  make(map[string][]DataItem),
	}
}

// Subject returns the subject the assertions are about.
func (d *SemanticData) Subject() Subject {
	return d.subject
}

// Add asserts (p, v). Adding a value that is already present is a no-op.
func (d *SemanticData) Add(p Property, v DataItem) {
	if v == nil || p.Key == "" {
		return
	}
	key := v.CanonicalKey()
	for _, existing := range d.values[p.Key] {
		if existing.CanonicalKey() == key {
			return
		}
	}
	d.values[p.Key] = append(d.values[p.Key], v)
}

// Set replaces every value of p. Setting no values removes p.
func (d *SemanticData) Set(p Property, vs ...DataItem) {
	delete(d.values, p.Key)
	for _, v := range vs {
		d.Add(p, v)
	}
}

// Remove drops every value of p.
func (d *SemanticData) Remove(p Property) {
	delete(d.values, p.Key)
}

// Values returns a copy of the values asserted for p.
func (d *SemanticData) Values(p Property) []DataItem {
	return slices.Clone(d.values[p.Key])
}

// Has reports whether any value is asserted for p.
func (d *SemanticData) Has(p Property) bool {
	return len(d.values[p.Key]) > 0
}

// Properties returns the asserted properties sorted by key.
func (d *SemanticData) Properties() []Property {
	keys := make([]string, 0, len(d.values))
	for k, vs := range d.values {
		if len(vs) > 0 {
			keys = append(keys, k)
		}
	}
	SortCanonical(keys)

	props := make([]Property, len(keys))
	for i, k := range keys {
		props[i] = Property{Key: k}
	}
	return props
}

// Len returns the number of (property, value) pairs.
func (d *SemanticData) Len() int {
	n := 0
	for _, vs := range d.values {
		n += len(vs)
	}
	return n
}

// IsEmpty reports whether the set holds no assertions.
func (d *SemanticData) IsEmpty() bool {
	return d.Len() == 0
}

// Clone returns an independent copy.
func (d *SemanticData) Clone() *SemanticData {
	c := NewSemanticData(d.subject)
	for k, vs := range d.values {
		c.values[k] = slices.Clone(vs)
	}
	return c
}

// Without returns a copy with the given property keys removed.
func (d *SemanticData) Without(keys ...string) *SemanticData {
	c := d.Clone()
	for _, k := range keys {
		delete(c.values, k)
	}
	return c
}

// Equal reports whether d and o assert the same facts about the same
// subject, ignoring value order.
func (d *SemanticData) Equal(o *SemanticData) bool {
	if d == nil || o == nil {
		return d == o
	}
	if !d.subject.Equal(o.subject) {
		return false
	}
	dp, op := d.Properties(), o.Properties()
	if !slices.Equal(dp, op) {
		return false
	}
	for _, p := range dp {
		if !SameValueSet(d.values[p.Key], o.values[p.Key]) {
			return false
		}
	}
	return true
}

// ForEach calls fn for every assertion, properties in key order.
func (d *SemanticData) ForEach(fn func(p Property, v DataItem)) {
	for _, p := range d.Properties() {
		for _, v := range d.values[p.Key] {
			fn(p, v)
		}
	}
}
