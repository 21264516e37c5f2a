// Package lang holds the static label tables for namespaces, special
// properties and datatypes, keyed by locale code.
//
// Tables are built once at package initialization and never change.
// English aliases are accepted by every locale.
package lang

import (
	"sort"
	"strings"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
)

// Default is the locale used when none is configured.
const Default = "en"

// Table is the label set of one locale.
type Table struct {
	code             string
	namespaces       map[ir.Namespace]string
	namespaceAliases map[string]ir.Namespace
	properties       map[string]string
	propertyAliases  map[string]string
	datatypes        map[string]string
	datatypeAliases  map[string]string
}

// Lookup returns the table for code. Codes are case-insensitive and accept
// "_" in place of "-".
func Lookup(code string) (*Table, bool) {
	t, ok := registry[normalizeCode(code)]
	return t, ok
}

// MustLookup is Lookup for codes known to exist.
func MustLookup(code string) *Table {
	t, ok := Lookup(code)
	if !ok {
		panic("lang: unknown locale " + code)
	}
	return t
}

// Codes returns the supported locale codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Code returns the locale code of t.
func (t *Table) Code() string { return t.code }

// NamespaceName returns the display prefix of ns. The main namespace has
// no prefix.
func (t *Table) NamespaceName(ns ir.Namespace) string {
	if name, ok := t.namespaces[ns]; ok {
		return name
	}
	return coreNamespaces[ns]
}

// PrefixedText renders a subject as "Namespace:Title text", with
// "#subobject" appended when present.
func (t *Table) PrefixedText(s ir.Subject) string {
	text := s.Text()
	if prefix := t.NamespaceName(s.Namespace); prefix != "" {
		text = strings.ReplaceAll(prefix, "_", " ") + ":" + text
	}
	if s.Subobject != "" {
		text += "#" + s.Subobject
	}
	return text
}

// ParseSubject reads "Namespace:Title#subobject". Text without a known
// namespace prefix lands in defaultNS.
func (t *Table) ParseSubject(text string, defaultNS ir.Namespace) (ir.Subject, error) {
	text = strings.TrimSpace(text)
	title, subobject, _ := strings.Cut(text, "#")

	ns := defaultNS
	if prefix, rest, ok := strings.Cut(title, ":"); ok {
		if parsed, known := t.namespace(prefix); known {
			ns, title = parsed, rest
		}
	}

	subj := ir.NewSubject(title, ns).WithSubobject(strings.TrimSpace(subobject))
	if !subj.IsValid() {
		return ir.Subject{}, errors.Mark(errors.Newf("no title in %q", text), errors.ErrInvalidSubject)
	}
	return subj, nil
}

func (t *Table) namespace(prefix string) (ir.Namespace, bool) {
	key := aliasKey(prefix)
	for ns, name := range t.namespaces {
		if aliasKey(name) == key {
			return ns, true
		}
	}
	if ns, ok := t.namespaceAliases[key]; ok {
		return ns, true
	}
	for ns, name := range coreNamespaces {
		if name != "" && aliasKey(name) == key {
			return ns, true
		}
	}
	if ns, ok := englishNamespaceAliases[key]; ok {
		return ns, true
	}
	return 0, false
}

// Property resolves a label to a property: special property labels and
// aliases map to their reserved keys, anything else is a user property.
func (t *Table) Property(label string) ir.Property {
	label = strings.TrimSpace(label)
	if strings.HasPrefix(label, "_") {
		return ir.NewProperty(label)
	}
	key := aliasKey(label)
	for id, name := range t.properties {
		if aliasKey(name) == key {
			return ir.NewProperty(id)
		}
	}
	if id, ok := t.propertyAliases[key]; ok {
		return ir.NewProperty(id)
	}
	if id, ok := englishPropertyAliases[key]; ok {
		return ir.NewProperty(id)
	}
	return ir.NewProperty(label)
}

// PropertyLabel returns the display label of p.
func (t *Table) PropertyLabel(p ir.Property) string {
	if p.IsUserDefined() {
		return strings.ReplaceAll(p.Key, "_", " ")
	}
	if label, ok := t.properties[p.Key]; ok {
		return label
	}
	if label, ok := english.properties[p.Key]; ok {
		return label
	}
	return p.Key
}

// Datatype resolves a datatype label or alias to its type ID ("_num").
func (t *Table) Datatype(label string) (string, bool) {
	key := aliasKey(label)
	for id, name := range t.datatypes {
		if aliasKey(name) == key {
			return id, true
		}
	}
	if id, ok := t.datatypeAliases[key]; ok {
		return id, true
	}
	for id, name := range english.datatypes {
		if aliasKey(name) == key {
			return id, true
		}
	}
	return "", false
}

// DatatypeLabel returns the display label of a type ID.
func (t *Table) DatatypeLabel(id string) string {
	if label, ok := t.datatypes[id]; ok {
		return label
	}
	if label, ok := english.datatypes[id]; ok {
		return label
	}
	return id
}

func normalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
}

// aliasKey folds a label for lookups. Spaces and underscores are the
// same and case is ignored.
func aliasKey(label string) string {
	return strings.ToLower(ir.NormalizeTitle(label))
}
