package queryir

import (
	"encoding/json"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
)

// Node kinds in the JSON encoding.
const (
	KindProperty    = "property"
	KindNamespace   = "namespace"
	KindCategory    = "category"
	KindConcept     = "concept"
	KindConjunction = "and"
	KindDisjunction = "or"
	KindNegation    = "not"
)

// Node is the document form of a Description. It is the shape stored
// in the concept table and accepted in fact files.
type Node struct {
	Kind      string       `json:"kind" yaml:"kind"`
	Property  string       `json:"property,omitempty" yaml:"property,omitempty"`
	Value     *ir.ValueDoc `json:"value,omitempty" yaml:"value,omitempty"`
	Sub       *Node        `json:"sub,omitempty" yaml:"sub,omitempty"`
	Namespace *int         `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Page      *ir.Subject  `json:"page,omitempty" yaml:"page,omitempty"`
	Parts     []Node       `json:"parts,omitempty" yaml:"parts,omitempty"`
	Inner     *Node        `json:"inner,omitempty" yaml:"inner,omitempty"`
}

// ToNode converts a description to its document form.
func ToNode(d Description) (Node, error) {
	switch n := d.(type) {
	case PropertyValue:
		node := Node{Kind: KindProperty, Property: n.Property.Key}
		if n.Value != nil {
			doc, err := ir.DocFromValue(n.Value)
			if err != nil {
				return Node{}, err
			}
			node.Value = &doc
		}
		if n.Sub != nil {
			sub, err := ToNode(n.Sub)
			if err != nil {
				return Node{}, err
			}
			node.Sub = &sub
		}
		return node, nil
	case Namespace:
		ns := int(n.Namespace)
		return Node{Kind: KindNamespace, Namespace: &ns}, nil
	case Category:
		s := n.Category
		return Node{Kind: KindCategory, Page: &s}, nil
	case ConceptRef:
		s := n.Concept
		return Node{Kind: KindConcept, Page: &s}, nil
	case Conjunction:
		parts, err := toNodes(n.Parts)
		return Node{Kind: KindConjunction, Parts: parts}, err
	case Disjunction:
		parts, err := toNodes(n.Parts)
		return Node{Kind: KindDisjunction, Parts: parts}, err
	case Negation:
		inner, err := ToNode(n.Inner)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindNegation, Inner: &inner}, nil
	default:
		return Node{}, errors.Newf("unsupported description type: %T", d)
	}
}

func toNodes(ds []Description) ([]Node, error) {
	out := make([]Node, 0, len(ds))
	for _, d := range ds {
		n, err := ToNode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Description converts a document back to a description tree.
// Page references are normalised.
func (n Node) Description() (Description, error) {
	switch n.Kind {
	case KindProperty:
		if n.Property == "" {
			return nil, errors.New("property node without property")
		}
		pv := PropertyValue{Property: ir.NewProperty(n.Property)}
		if n.Value != nil {
			v, err := n.Value.Value()
			if err != nil {
				return nil, errors.Wrapf(err, "property %s", n.Property)
			}
			pv.Value = v
		}
		if n.Sub != nil {
			sub, err := n.Sub.Description()
			if err != nil {
				return nil, err
			}
			pv.Sub = sub
		}
		return pv, nil
	case KindNamespace:
		if n.Namespace == nil {
			return nil, errors.New("namespace node without namespace")
		}
		return Namespace{Namespace: ir.Namespace(*n.Namespace)}, nil
	case KindCategory:
		s, err := n.pageOr(ir.NSCategory)
		if err != nil {
			return nil, err
		}
		return Category{Category: s}, nil
	case KindConcept:
		s, err := n.pageOr(ir.NSConcept)
		if err != nil {
			return nil, err
		}
		return ConceptRef{Concept: s}, nil
	case KindConjunction, KindDisjunction:
		parts := make([]Description, 0, len(n.Parts))
		for _, p := range n.Parts {
			d, err := p.Description()
			if err != nil {
				return nil, err
			}
			parts = append(parts, d)
		}
		if n.Kind == KindConjunction {
			return Conjunction{Parts: parts}, nil
		}
		return Disjunction{Parts: parts}, nil
	case KindNegation:
		if n.Inner == nil {
			return nil, errors.New("not node without inner description")
		}
		inner, err := n.Inner.Description()
		if err != nil {
			return nil, err
		}
		return Negation{Inner: inner}, nil
	default:
		return nil, errors.Newf("unknown node kind %q", n.Kind)
	}
}

// pageOr normalises the page reference, defaulting an unset namespace
// (the zero value) to ns.
func (n Node) pageOr(ns ir.Namespace) (ir.Subject, error) {
	if n.Page == nil || n.Page.Title == "" {
		return ir.Subject{}, errors.Newf("%s node without page", n.Kind)
	}
	pageNS := n.Page.Namespace
	if pageNS == ir.NSMain {
		pageNS = ns
	}
	return ir.NewSubject(n.Page.Title, pageNS), nil
}

// Marshal encodes d as JSON.
func Marshal(d Description) ([]byte, error) {
	node, err := ToNode(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

// Unmarshal decodes and validates a JSON description.
func Unmarshal(data []byte) (Description, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, errors.Wrap(err, "decode concept description")
	}
	d, err := node.Description()
	if err != nil {
		return nil, err
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// NewConcept builds the "_CONC" value for d: the validated JSON
// description with its metrics.
func NewConcept(d Description, documentation string) (ir.Concept, error) {
	if err := Validate(d); err != nil {
		return ir.Concept{}, err
	}
	data, err := Marshal(d)
	if err != nil {
		return ir.Concept{}, err
	}
	m := Measure(d)
	return ir.Concept{
		Description:   string(data),
		Documentation: documentation,
		Features:      m.Features,
		Size:          m.Size,
		Depth:         m.Depth,
	}, nil
}
