package ir

import (
	"strconv"
	"strings"
	"time"
)

// Family identifies the value-type family of a DataItem. Each family is
// persisted in exactly one property table.
type Family int

const (
	FamilyBlob Family = iota + 1
	FamilyNumber
	FamilyBoolean
	FamilyTime
	FamilyPage
	FamilyConcept
)

// Families lists every family in table order.
var Families = []Family{FamilyBlob, FamilyNumber, FamilyBoolean, FamilyTime, FamilyPage, FamilyConcept}

// String returns the family name used in fixtures and logs.
func (f Family) String() string {
	switch f {
	case FamilyBlob:
		return "blob"
	case FamilyNumber:
		return "number"
	case FamilyBoolean:
		return "boolean"
	case FamilyTime:
		return "time"
	case FamilyPage:
		return "page"
	case FamilyConcept:
		return "concept"
	default:
		return "unknown"
	}
}

// ParseFamily is the inverse of Family.String.
func ParseFamily(name string) (Family, bool) {
	for _, f := range Families {
		if f.String() == strings.ToLower(name) {
			return f, true
		}
	}
	return 0, false
}

// DataItem is a sealed interface over the storable value families.
// Only Blob, Number, Boolean, Time, Page and Concept implement it.
type DataItem interface {
	Family() Family
	// CanonicalKey is a family-prefixed, NFC-normalised representation.
	// Two items are equal iff their canonical keys are equal.
	CanonicalKey() string
	dataItem()
}

// Blob is a string value.
type Blob string

func (Blob) dataItem()              {}
func (Blob) Family() Family         { return FamilyBlob }
func (b Blob) CanonicalKey() string { return "b:" + CanonicalString(string(b)) }

// Number is a numeric value.
type Number float64

func (Number) dataItem()      {}
func (Number) Family() Family { return FamilyNumber }
func (n Number) CanonicalKey() string {
	return "n:" + strconv.FormatFloat(float64(n), 'g', -1, 64)
}

// Boolean is a truth value.
type Boolean bool

func (Boolean) dataItem()      {}
func (Boolean) Family() Family { return FamilyBoolean }
func (b Boolean) CanonicalKey() string {
	return "o:" + strconv.FormatBool(bool(b))
}

// Time is a point in time, compared at nanosecond precision in UTC.
type Time struct {
	T time.Time
}

// NewTime creates a Time value normalised to UTC.
func NewTime(t time.Time) Time {
	return Time{T: t.UTC()}
}

func (Time) dataItem()      {}
func (Time) Family() Family { return FamilyTime }
func (t Time) CanonicalKey() string {
	return "t:" + t.T.UTC().Format(time.RFC3339Nano)
}

// Page is a reference to another subject.
type Page struct {
	Subject Subject
}

// NewPage creates a page reference.
func NewPage(s Subject) Page {
	return Page{Subject: s}
}

func (Page) dataItem()              {}
func (Page) Family() Family         { return FamilyPage }
func (p Page) CanonicalKey() string { return "p:" + CanonicalString(p.Subject.Key()) }

// Concept is the value of "_CONC": a saved query description plus the
// declared complexity used by the concept cache hard filter.
//
// Description holds the JSON encoding produced by package queryir.
type Concept struct {
	Description   string
	Documentation string
	Features      QueryFeature
	Size          int
	Depth         int
}

func (Concept) dataItem()      {}
func (Concept) Family() Family { return FamilyConcept }
func (c Concept) CanonicalKey() string {
	return "c:" + CanonicalString(c.Description) + "\x00" + CanonicalString(c.Documentation)
}
