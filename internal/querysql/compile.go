// Package querysql compiles concept descriptions to SQLite.
package querysql

import (
	"strings"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/queryir"
	"github.com/roach88/semstore/internal/tables"
)

// SQLCompiler compiles descriptions to parameterized SQL for SQLite.
//
// The compiled statement returns one column, id, holding the subject IDs
// matching the description, ordered ascending. Every value is passed as a
// parameter, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a description to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(d queryir.Description) (string, []any, error) {
	if err := queryir.Validate(d); err != nil {
		return "", nil, err
	}

	b := &builder{}
	if err := b.description(d); err != nil {
		return "", nil, err
	}

	sql := "SELECT DISTINCT id FROM (" + b.sql.String() + ") ORDER BY id ASC"
	return sql, b.params, nil
}

// builder accumulates SQL text and parameters in textual order.
type builder struct {
	sql    strings.Builder
	params []any
}

func (b *builder) write(s string, params ...any) {
	b.sql.WriteString(s)
	b.params = append(b.params, params...)
}

func (b *builder) description(d queryir.Description) error {
	switch n := d.(type) {
	case queryir.PropertyValue:
		return b.propertyValue(n)
	case queryir.Namespace:
		b.write("SELECT o.smw_id AS id FROM "+tables.IDs+" o JOIN "+tables.Fingerprints+
			" f ON f.s_id = o.smw_id WHERE o.smw_namespace = ? AND o.smw_subobject = ''", int(n.Namespace))
		return nil
	case queryir.Category:
		return b.propertyValue(queryir.PropertyValue{
			Property: ir.NewProperty(ir.PropCategory),
			Value:    ir.NewPage(n.Category),
		})
	case queryir.ConceptRef:
		b.write("SELECT o_id AS id FROM " + tables.ConceptCache + " WHERE s_id = ")
		b.subjectID(n.Concept)
		return nil
	case queryir.Conjunction:
		return b.compound(n.Parts, " INTERSECT ")
	case queryir.Disjunction:
		return b.compound(n.Parts, " UNION ")
	case queryir.Negation:
		b.write("SELECT s_id AS id FROM " + tables.Fingerprints + " EXCEPT SELECT id FROM (")
		if err := b.description(n.Inner); err != nil {
			return err
		}
		b.write(")")
		return nil
	default:
		return errors.Newf("unsupported description type: %T", d)
	}
}

// compound joins parts with a set operator. Each part is wrapped in a
// subselect so nested compounds keep their own grouping.
func (b *builder) compound(parts []queryir.Description, op string) error {
	for i, p := range parts {
		if i > 0 {
			b.write(op)
		}
		b.write("SELECT id FROM (")
		if err := b.description(p); err != nil {
			return err
		}
		b.write(")")
	}
	return nil
}

func (b *builder) propertyValue(pv queryir.PropertyValue) error {
	if pv.Property.Key == ir.PropConcept {
		if pv.Value != nil || pv.Sub != nil {
			return errors.New("concept descriptions cannot be compared by value")
		}
		b.write("SELECT s_id AS id FROM " + tables.Concept)
		return nil
	}

	switch {
	case pv.Sub != nil:
		b.write("SELECT s_id AS id FROM " + tables.WikiPage + " WHERE p_id = ")
		b.subjectID(pv.Property.Subject())
		b.write(" AND o_id IN (SELECT id FROM (")
		if err := b.description(pv.Sub); err != nil {
			return err
		}
		b.write("))")
		return nil

	case pv.Value != nil:
		tbl, ok := tables.ForFamily(pv.Value.Family())
		if !ok {
			return errors.Newf("no table for %s values", pv.Value.Family())
		}
		b.write("SELECT s_id AS id FROM " + tbl.Name + " WHERE p_id = ")
		b.subjectID(pv.Property.Subject())
		if page, isPage := pv.Value.(ir.Page); isPage {
			b.write(" AND o_id = ")
			b.subjectID(page.Subject)
			return nil
		}
		arg, ok := tables.ScalarArg(pv.Value)
		if !ok {
			return errors.Newf("unsupported value type: %T", pv.Value)
		}
		b.write(" AND "+tbl.Column+" = ?", arg)
		return nil

	default:
		for i, tbl := range tables.Keyed() {
			if i > 0 {
				b.write(" UNION ")
			}
			b.write("SELECT s_id AS id FROM " + tbl.Name + " WHERE p_id = ")
			b.subjectID(pv.Property.Subject())
		}
		return nil
	}
}

// subjectID writes a scalar subquery resolving s to its ID. Unknown
// subjects resolve to NULL, which matches nothing.
func (b *builder) subjectID(s ir.Subject) {
	b.write("(SELECT smw_id FROM "+tables.IDs+
		" WHERE smw_namespace = ? AND smw_title = ? AND smw_iw = ? AND smw_subobject = ?)",
		int(s.Namespace), s.Title, s.Interwiki, s.Subobject)
}
