package ir

import (
	"strings"
	"time"
)

// QueryFeature is a bitmask of query-language capabilities a concept
// description uses.
type QueryFeature int

const (
	FeatureProperty    QueryFeature = 1
	FeatureCategory    QueryFeature = 2
	FeatureConcept     QueryFeature = 4
	FeatureNamespace   QueryFeature = 8
	FeatureConjunction QueryFeature = 16
	FeatureDisjunction QueryFeature = 32
	FeatureNegation    QueryFeature = 64
)

// DefaultQueryFeatures allows everything except negation.
const DefaultQueryFeatures = FeatureProperty | FeatureCategory | FeatureConcept |
	FeatureNamespace | FeatureConjunction | FeatureDisjunction

// Within reports whether every bit of f is also set in allowed.
func (f QueryFeature) Within(allowed QueryFeature) bool {
	return f&^allowed == 0
}

// String lists the set feature names.
func (f QueryFeature) String() string {
	names := []struct {
		bit  QueryFeature
		name string
	}{
		{FeatureProperty, "property"},
		{FeatureCategory, "category"},
		{FeatureConcept, "concept"},
		{FeatureNamespace, "namespace"},
		{FeatureConjunction, "conjunction"},
		{FeatureDisjunction, "disjunction"},
		{FeatureNegation, "negation"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CacheStatus is the state of a concept cache.
type CacheStatus string

const (
	CacheEmpty CacheStatus = "empty"
	CacheFull  CacheStatus = "full"
)

// CacheRecord summarises the materialised result of one concept.
// Full with an old Date is a valid, stale state.
type CacheRecord struct {
	Status   CacheStatus
	Date     time.Time
	Count    int
	Size     int
	Depth    int
	Features QueryFeature
}

// IsFull reports whether the cache holds a result set.
func (c CacheRecord) IsFull() bool {
	return c.Status == CacheFull
}

// Age returns how long ago the cache was built. Empty caches have age 0.
func (c CacheRecord) Age(now time.Time) time.Duration {
	if !c.IsFull() {
		return 0
	}
	return now.Sub(c.Date)
}
