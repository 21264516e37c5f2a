package queryir

import (
	"fmt"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
)

// ErrInvalidDescription marks every error returned by Validate.
var ErrInvalidDescription = errors.New("invalid concept description")

// Validate checks that d is a well-formed tree. It returns the first
// problem found, marked with ErrInvalidDescription.
func Validate(d Description) error {
	v := &validator{}
	v.validate(d, "$")
	if v.err != nil {
		return errors.Mark(v.err, ErrInvalidDescription)
	}
	return nil
}

type validator struct {
	err error
}

func (v *validator) fail(path, format string, args ...any) {
	if v.err == nil {
		v.err = errors.Newf("%s: %s", path, fmt.Sprintf(format, args...))
	}
}

func (v *validator) validate(d Description, path string) {
	if v.err != nil {
		return
	}

	switch n := d.(type) {
	case nil:
		v.fail(path, "missing description")
	case PropertyValue:
		v.validateProperty(n, path)
	case Namespace:
		if !n.Namespace.CanHoldContent() {
			v.fail(path, "namespace %d cannot hold content", n.Namespace)
		}
	case Category:
		if !n.Category.IsValid() || n.Category.Namespace != ir.NSCategory {
			v.fail(path, "category must be a page in namespace %d", ir.NSCategory)
		}
	case ConceptRef:
		if !n.Concept.IsConcept() || !n.Concept.IsValid() {
			v.fail(path, "concept reference must be a page in namespace %d", ir.NSConcept)
		}
	case Conjunction:
		v.validateParts(n.Parts, path+".and")
	case Disjunction:
		v.validateParts(n.Parts, path+".or")
	case Negation:
		v.validate(n.Inner, path+".not")
	default:
		v.fail(path, "unknown description type %T", d)
	}
}

func (v *validator) validateProperty(n PropertyValue, path string) {
	if n.Property.Key == "" {
		v.fail(path, "property is required")
		return
	}
	if n.Value != nil && n.Sub != nil {
		v.fail(path, "property %s has both a value and a sub-description", n.Property)
		return
	}
	if _, ok := n.Value.(ir.Concept); ok {
		v.fail(path, "property %s cannot be compared to a concept value", n.Property)
		return
	}
	if n.Sub != nil {
		v.validate(n.Sub, path+"."+n.Property.Key)
	}
}

func (v *validator) validateParts(parts []Description, path string) {
	if len(parts) == 0 {
		v.fail(path, "needs at least one part")
		return
	}
	for i, p := range parts {
		v.validate(p, fmt.Sprintf("%s[%d]", path, i))
	}
}
