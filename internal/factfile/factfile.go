// Package factfile reads fact documents: the YAML or JSON form of one
// page update, with its facts, optional concept definition and page
// metadata.
//
//	subject: Property:Population
//	page:
//	  modified: 2024-03-01T10:00:00Z
//	  last_editor: Alice
//	facts:
//	  - property: Has type
//	    values:
//	      - blob: _num
//
// A YAML file may hold several documents separated by "---". A JSON file
// holds one object or an array of objects.
package factfile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/semstore/internal/annotator"
	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/lang"
	"github.com/roach88/semstore/internal/queryir"
)

// Document is one page update.
type Document struct {
	// Subject is the prefixed page text, e.g. "Concept:Big cities".
	Subject string `json:"subject" yaml:"subject"`

	// Missing marks a page that does not exist. Its facts are ignored
	// and the update clears the subject.
	Missing bool `json:"missing,omitempty" yaml:"missing,omitempty"`

	// Restricted marks an update that edit protection reports as a
	// protection-only change.
	Restricted bool `json:"restricted,omitempty" yaml:"restricted,omitempty"`

	Page    *annotator.PageInfo `json:"page,omitempty" yaml:"page,omitempty"`
	Facts   []Fact              `json:"facts,omitempty" yaml:"facts,omitempty"`
	Concept *Concept            `json:"concept,omitempty" yaml:"concept,omitempty"`
}

// Fact lists the values of one property. Property accepts a reserved
// key ("_TYPE"), a special property label ("Has type") or a user
// property name.
type Fact struct {
	Property string  `json:"property" yaml:"property"`
	Values   []Value `json:"values" yaml:"values"`
}

// Value is a value document, or a page reference written as text in Ref.
type Value struct {
	ir.ValueDoc `yaml:",inline"`
	Ref         string `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Concept is the "_CONC" definition of a concept page.
type Concept struct {
	Documentation string       `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	Description   queryir.Node `json:"description" yaml:"description"`
}

// Load reads the documents in path. Files ending in ".json" are read as
// JSON, everything else as YAML.
func Load(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read fact file %s", path)
	}
	var docs []Document
	if strings.EqualFold(filepath.Ext(path), ".json") {
		docs, err = ParseJSON(data)
	} else {
		docs, err = ParseYAML(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fact file %s", path)
	}
	return docs, nil
}

// ParseYAML decodes every document of a YAML stream.
func ParseYAML(data []byte) ([]Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var docs []Document
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse document %d", len(docs)+1)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents")
	}
	return docs, nil
}

// ParseJSON decodes one document or an array of documents.
func ParseJSON(data []byte) ([]Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("no documents")
	}
	if trimmed[0] == '[' {
		var docs []Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, errors.Wrap(err, "failed to parse documents")
		}
		if len(docs) == 0 {
			return nil, errors.New("no documents")
		}
		return docs, nil
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse document")
	}
	return []Document{doc}, nil
}

// SubjectOf parses the document subject with the locale table.
func (d Document) SubjectOf(t *lang.Table) (ir.Subject, error) {
	return t.ParseSubject(d.Subject, ir.NSMain)
}

// SemanticData builds the update payload of the document.
func (d Document) SemanticData(t *lang.Table) (*ir.SemanticData, error) {
	subj, err := d.SubjectOf(t)
	if err != nil {
		return nil, err
	}
	data := ir.NewSemanticData(subj)

	for i, f := range d.Facts {
		if strings.TrimSpace(f.Property) == "" {
			return nil, errors.Newf("%s: fact %d has no property", d.Subject, i+1)
		}
		p := t.Property(f.Property)
		for j, v := range f.Values {
			item, err := v.item(t)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: %s value %d", d.Subject, f.Property, j+1)
			}
			data.Add(p, item)
		}
	}

	if d.Concept != nil {
		desc, err := d.Concept.Description.Description()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: concept", d.Subject)
		}
		c, err := queryir.NewConcept(desc, d.Concept.Documentation)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: concept", d.Subject)
		}
		data.Set(ir.NewProperty(ir.PropConcept), c)
	}
	return data, nil
}

func (v Value) item(t *lang.Table) (ir.DataItem, error) {
	if v.Ref == "" {
		return v.ValueDoc.Value()
	}
	if v.ValueDoc != (ir.ValueDoc{}) {
		return nil, errors.New("ref cannot be combined with another value field")
	}
	s, err := t.ParseSubject(v.Ref, ir.NSMain)
	if err != nil {
		return nil, err
	}
	return ir.NewPage(s), nil
}

// Pages answers page-existence, metadata and edit-protection lookups
// from a set of documents. Subjects without a document are treated as
// existing pages with no metadata.
type Pages struct {
	docs map[string]Document
}

// NewPages indexes docs by subject. A later document for the same
// subject replaces an earlier one.
func NewPages(t *lang.Table, docs []Document) (*Pages, error) {
	p := &Pages{docs: make(map[string]Document, len(docs))}
	for _, d := range docs {
		if err := p.Put(t, d); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Put indexes one document.
func (p *Pages) Put(t *lang.Table, d Document) error {
	subj, err := d.SubjectOf(t)
	if err != nil {
		return err
	}
	p.docs[subj.Key()] = d
	return nil
}

// PageInfo reports the page metadata of subj.
func (p *Pages) PageInfo(_ context.Context, subj ir.Subject) (annotator.PageInfo, bool, error) {
	d, ok := p.docs[subj.Key()]
	if !ok {
		return annotator.PageInfo{}, true, nil
	}
	if d.Missing {
		return annotator.PageInfo{}, false, nil
	}
	if d.Page == nil {
		return annotator.PageInfo{}, true, nil
	}
	return *d.Page, true, nil
}

// IsRestrictedUpdate reports the Restricted flag of the document the
// data was built from.
func (p *Pages) IsRestrictedUpdate(_ context.Context, data *ir.SemanticData) (bool, error) {
	d, ok := p.docs[data.Subject().Key()]
	return ok && d.Restricted, nil
}
