package ir

import "strings"

// Predefined property keys. Keys starting with "_" are reserved.
const (
	PropRedirect         = "_REDI"
	PropType             = "_TYPE"
	PropAllowsValue      = "_PVAL"
	PropAllowsList       = "_LIST"
	PropConversion       = "_CONV"
	PropDisplayUnit      = "_UNIT"
	PropModificationDate = "_MDAT"
	PropCreationDate     = "_CDAT"
	PropLastEditor       = "_LEDT"
	PropNewPage          = "_NEWP"
	PropEditProtection   = "_EDIP"
	PropConcept          = "_CONC"
	PropCategory         = "_INST"
)

// Property names the predicate of an assertion.
type Property struct {
	Key string `json:"key" yaml:"key"`
}

// NewProperty creates a property from a key or a user label.
// Reserved keys are kept verbatim, user labels are normalised like titles.
func NewProperty(key string) Property {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "_") {
		return Property{Key: key}
	}
	return Property{Key: NormalizeTitle(key)}
}

// IsUserDefined reports whether p was declared by a page rather than
// being one of the reserved keys.
func (p Property) IsUserDefined() bool {
	return p.Key != "" && !strings.HasPrefix(p.Key, "_")
}

// Subject returns the property page describing p.
func (p Property) Subject() Subject {
	return Subject{Namespace: NSProperty, Title: p.Key}
}

// PropertyFromSubject returns the property described by a property page.
func PropertyFromSubject(s Subject) (Property, bool) {
	if s.Namespace != NSProperty || s.Subobject != "" || s.Title == "" {
		return Property{}, false
	}
	return Property{Key: s.Title}, true
}

// String returns the property key.
func (p Property) String() string {
	return p.Key
}
