package queryir

import "github.com/roach88/semstore/internal/ir"

// Metrics is the declared complexity of a description.
type Metrics struct {
	Size     int
	Depth    int
	Features ir.QueryFeature
}

// Measure computes the metrics of d. A nil description has zero metrics.
func Measure(d Description) Metrics {
	return Metrics{
		Size:     size(d),
		Depth:    depth(d),
		Features: features(d),
	}
}

func size(d Description) int {
	switch n := d.(type) {
	case PropertyValue:
		if n.Sub != nil {
			return 1 + size(n.Sub)
		}
		return 1
	case Namespace, Category, ConceptRef:
		return 1
	case Conjunction:
		return 1 + sumSize(n.Parts)
	case Disjunction:
		return 1 + sumSize(n.Parts)
	case Negation:
		return 1 + size(n.Inner)
	default:
		return 0
	}
}

func sumSize(parts []Description) int {
	total := 0
	for _, p := range parts {
		total += size(p)
	}
	return total
}

func depth(d Description) int {
	switch n := d.(type) {
	case PropertyValue:
		return 1 + depth(n.Sub)
	case Conjunction:
		return maxDepth(n.Parts)
	case Disjunction:
		return maxDepth(n.Parts)
	case Negation:
		return depth(n.Inner)
	default:
		return 0
	}
}

func maxDepth(parts []Description) int {
	m := 0
	for _, p := range parts {
		m = max(m, depth(p))
	}
	return m
}

func features(d Description) ir.QueryFeature {
	switch n := d.(type) {
	case PropertyValue:
		return ir.FeatureProperty | features(n.Sub)
	case Namespace:
		return ir.FeatureNamespace
	case Category:
		return ir.FeatureCategory
	case ConceptRef:
		return ir.FeatureConcept
	case Conjunction:
		return ir.FeatureConjunction | orFeatures(n.Parts)
	case Disjunction:
		return ir.FeatureDisjunction | orFeatures(n.Parts)
	case Negation:
		return ir.FeatureNegation | features(n.Inner)
	default:
		return 0
	}
}

func orFeatures(parts []Description) ir.QueryFeature {
	var f ir.QueryFeature
	for _, p := range parts {
		f |= features(p)
	}
	return f
}
