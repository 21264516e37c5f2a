package ir

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Subject identifies an entity about which facts are stored.
//
// Two subjects are the same entity iff their Key() values are equal.
// Construct subjects with NewSubject so the title is normalised.
type Subject struct {
	Namespace Namespace `json:"namespace" yaml:"namespace"`
	Title     string    `json:"title" yaml:"title"`
	Interwiki string    `json:"interwiki,omitempty" yaml:"interwiki,omitempty"`
	Subobject string    `json:"subobject,omitempty" yaml:"subobject,omitempty"`
}

// NewSubject creates a subject with a normalised title.
func NewSubject(title string, ns Namespace) Subject {
	return Subject{Namespace: ns, Title: NormalizeTitle(title)}
}

// WithSubobject returns a copy of s addressing the named subobject.
func (s Subject) WithSubobject(name string) Subject {
	s.Subobject = name
	return s
}

// NormalizeTitle converts display text into the stored title form:
// NFC, trimmed, spaces and runs of underscores collapsed to one
// underscore, first letter upper-cased.
func NormalizeTitle(title string) string {
	title = norm.NFC.String(strings.TrimSpace(title))
	title = strings.ReplaceAll(title, " ", "_")
	for strings.Contains(title, "__") {
		title = strings.ReplaceAll(title, "__", "_")
	}
	title = strings.Trim(title, "_")
	if title == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(r)) + title[size:]
}

// IsValid reports whether s names something that can be resolved to an ID.
func (s Subject) IsValid() bool {
	return s.Title != ""
}

// IsConcept reports whether s is a concept definition page.
func (s Subject) IsConcept() bool {
	return s.Namespace == NSConcept && s.Subobject == ""
}

// Key returns the canonical identity string of s.
func (s Subject) Key() string {
	return fmt.Sprintf("%s#%d#%s#%s", s.Title, s.Namespace, s.Interwiki, s.Subobject)
}

// Equal reports whether s and o identify the same entity.
func (s Subject) Equal(o Subject) bool {
	return s.Key() == o.Key()
}

// Text returns the title with underscores shown as spaces.
func (s Subject) Text() string {
	return strings.ReplaceAll(s.Title, "_", " ")
}

// String implements fmt.Stringer using the canonical key.
func (s Subject) String() string {
	return s.Key()
}
