package queryir

import "github.com/roach88/semstore/internal/ir"

// Description is a node of a saved-query tree.
//
// This is a sealed interface - only types in this package implement it.
type Description interface {
	descriptionNode()
}

// PropertyValue matches subjects that carry Property.
//
// With a non-nil Value only subjects asserting exactly that value match.
// With a non-nil Sub only subjects whose page values match Sub match.
// Value and Sub are mutually exclusive; neither means "any value".
type PropertyValue struct {
	Property ir.Property
	Value    ir.DataItem
	Sub      Description
}

func (PropertyValue) descriptionNode() {}

// Namespace matches every subject in a namespace.
type Namespace struct {
	Namespace ir.Namespace
}

func (Namespace) descriptionNode() {}

// Category matches subjects assigned to a category page.
type Category struct {
	Category ir.Subject
}

func (Category) descriptionNode() {}

// ConceptRef matches the members of another concept.
type ConceptRef struct {
	Concept ir.Subject
}

func (ConceptRef) descriptionNode() {}

// Conjunction matches subjects matching every part.
type Conjunction struct {
	Parts []Description
}

func (Conjunction) descriptionNode() {}

// Disjunction matches subjects matching at least one part.
type Disjunction struct {
	Parts []Description
}

func (Disjunction) descriptionNode() {}

// Negation matches subjects not matching Inner.
type Negation struct {
	Inner Description
}

func (Negation) descriptionNode() {}
