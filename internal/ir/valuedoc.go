package ir

import (
	"time"

	"github.com/roach88/semstore/internal/errors"
)

// ValueDoc is the document form of a non-concept DataItem, used by the
// JSON description codec and by fact files. Exactly one field is set.
type ValueDoc struct {
	Blob    *string    `json:"blob,omitempty" yaml:"blob,omitempty"`
	Number  *float64   `json:"number,omitempty" yaml:"number,omitempty"`
	Boolean *bool      `json:"boolean,omitempty" yaml:"boolean,omitempty"`
	Time    *time.Time `json:"time,omitempty" yaml:"time,omitempty"`
	Page    *Subject   `json:"page,omitempty" yaml:"page,omitempty"`
}

// DocFromValue converts v to its document form. Concept values have no
// ValueDoc form.
func DocFromValue(v DataItem) (ValueDoc, error) {
	switch val := v.(type) {
	case Blob:
		s := string(val)
		return ValueDoc{Blob: &s}, nil
	case Number:
		n := float64(val)
		return ValueDoc{Number: &n}, nil
	case Boolean:
		b := bool(val)
		return ValueDoc{Boolean: &b}, nil
	case Time:
		t := val.T.UTC()
		return ValueDoc{Time: &t}, nil
	case Page:
		s := val.Subject
		return ValueDoc{Page: &s}, nil
	default:
		return ValueDoc{}, errors.Newf("value of type %T has no document form", v)
	}
}

// Value converts the document back to a DataItem.
func (d ValueDoc) Value() (DataItem, error) {
	var out []DataItem
	if d.Blob != nil {
		out = append(out, Blob(*d.Blob))
	}
	if d.Number != nil {
		out = append(out, Number(*d.Number))
	}
	if d.Boolean != nil {
		out = append(out, Boolean(*d.Boolean))
	}
	if d.Time != nil {
		out = append(out, NewTime(*d.Time))
	}
	if d.Page != nil {
		out = append(out, NewPage(NewSubject(d.Page.Title, d.Page.Namespace).WithSubobject(d.Page.Subobject)))
	}

	switch len(out) {
	case 0:
		return nil, errors.New("value document is empty")
	case 1:
		return out[0], nil
	default:
		return nil, errors.Newf("value document sets %d fields, want exactly one", len(out))
	}
}
