// Package annotator derives the predefined page properties (modification
// date, creation date, last editor, new-page flag) from page metadata.
package annotator

import (
	"slices"
	"time"

	"github.com/roach88/semstore/internal/ir"
)

// PageInfo is the revision metadata of a page at the time of an update.
type PageInfo struct {
	Created    time.Time `json:"created,omitempty" yaml:"created,omitempty"`
	Modified   time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`
	LastEditor string    `json:"last_editor,omitempty" yaml:"last_editor,omitempty"`
	IsNew      bool      `json:"is_new,omitempty" yaml:"is_new,omitempty"`
}

// Supported lists the property keys the annotator can produce.
var Supported = []string{
	ir.PropModificationDate,
	ir.PropCreationDate,
	ir.PropLastEditor,
	ir.PropNewPage,
}

// Predefined produces the configured predefined properties.
type Predefined struct {
	keys []string
}

// New returns an annotator for keys. Keys it cannot produce are ignored.
func New(keys []string) *Predefined {
	p := &Predefined{}
	for _, k := range keys {
		if slices.Contains(Supported, k) {
			p.keys = append(p.keys, k)
		}
	}
	return p
}

// Keys returns the properties this annotator writes.
func (p *Predefined) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Annotate returns the annotations for subject derived from info. The
// result holds only reserved properties; unknown metadata (zero times,
// empty editor) produces no value.
func (p *Predefined) Annotate(subject ir.Subject, info PageInfo) *ir.SemanticData {
	out := ir.NewSemanticData(subject)
	for _, key := range p.keys {
		prop := ir.NewProperty(key)
		switch key {
		case ir.PropModificationDate:
			if !info.Modified.IsZero() {
				out.Add(prop, ir.NewTime(info.Modified))
			}
		case ir.PropCreationDate:
			if !info.Created.IsZero() {
				out.Add(prop, ir.NewTime(info.Created))
			}
		case ir.PropLastEditor:
			if info.LastEditor != "" {
				out.Add(prop, ir.NewPage(ir.NewSubject(info.LastEditor, ir.NSUser)))
			}
		case ir.PropNewPage:
			out.Add(prop, ir.Boolean(info.IsNew))
		}
	}
	return out
}

// Apply overrides the reserved properties of data with the values in
// annotations. User properties in data are never touched, and reserved
// properties not present in annotations are kept.
func Apply(data, annotations *ir.SemanticData) *ir.SemanticData {
	out := data.Clone()
	for _, prop := range annotations.Properties() {
		if prop.IsUserDefined() {
			continue
		}
		out.Set(prop, annotations.Values(prop)...)
	}
	return out
}
