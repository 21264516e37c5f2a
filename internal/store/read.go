package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/tables"
)

// ReadSemanticData returns the facts currently stored for subj.
// Unknown subjects yield an empty set, not an error.
func (s *Store) ReadSemanticData(ctx context.Context, subj ir.Subject) (*ir.SemanticData, error) {
	id, ok, err := s.Resolve(ctx, subj, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return ir.NewSemanticData(subj), nil
	}
	return readData(ctx, s.db, id, subj)
}

// readData loads every row owned by id. Rows whose property or page
// value no longer has an ID entry are skipped.
func readData(ctx context.Context, q querier, id int64, subj ir.Subject) (*ir.SemanticData, error) {
	data := ir.NewSemanticData(subj)

	for _, tbl := range tables.Keyed() {
		if err := readKeyed(ctx, q, tbl, id, data); err != nil {
			return nil, err
		}
	}

	c, ok, err := readConceptRow(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if ok {
		data.Add(ir.NewProperty(ir.PropConcept), c)
	}

	return data, nil
}

func readKeyed(ctx context.Context, q querier, tbl tables.Table, id int64, data *ir.SemanticData) error {
	var query string
	if tbl.Family == ir.FamilyPage {
		query = `
			SELECT p.smw_title, o.smw_namespace, o.smw_title, o.smw_iw, o.smw_subobject
			FROM smw_di_wikipage t
			JOIN smw_object_ids p ON p.smw_id = t.p_id
			JOIN smw_object_ids o ON o.smw_id = t.o_id
			WHERE t.s_id = ?
			ORDER BY t.rowid ASC`
	} else {
		query = fmt.Sprintf(`
			SELECT p.smw_title, t.%s
			FROM %s t
			JOIN smw_object_ids p ON p.smw_id = t.p_id
			WHERE t.s_id = ?
			ORDER BY t.rowid ASC`, tbl.Column, tbl.Name)
	}

	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return errors.Storagef(err, "query %s", tbl.Name)
	}
	defer rows.Close()

	for rows.Next() {
		prop, value, err := scanValue(rows, tbl.Family)
		if err != nil {
			return err
		}
		data.Add(prop, value)
	}
	if err := rows.Err(); err != nil {
		return errors.Storagef(err, "iterate %s", tbl.Name)
	}
	return nil
}

func scanValue(rows *sql.Rows, family ir.Family) (ir.Property, ir.DataItem, error) {
	var key string
	var value ir.DataItem

	switch family {
	case ir.FamilyBlob:
		var v string
		if err := rows.Scan(&key, &v); err != nil {
			return ir.Property{}, nil, errors.Storage(err, "scan blob")
		}
		value = ir.Blob(v)
	case ir.FamilyNumber:
		var v float64
		if err := rows.Scan(&key, &v); err != nil {
			return ir.Property{}, nil, errors.Storage(err, "scan number")
		}
		value = ir.Number(v)
	case ir.FamilyBoolean:
		var v int64
		if err := rows.Scan(&key, &v); err != nil {
			return ir.Property{}, nil, errors.Storage(err, "scan boolean")
		}
		value = ir.Boolean(v != 0)
	case ir.FamilyTime:
		var v string
		if err := rows.Scan(&key, &v); err != nil {
			return ir.Property{}, nil, errors.Storage(err, "scan time")
		}
		t, err := tables.ParseTime(v)
		if err != nil {
			return ir.Property{}, nil, errors.Wrapf(err, "stored time %q", v)
		}
		value = ir.NewTime(t)
	case ir.FamilyPage:
		var (
			ns   int
			page ir.Subject
		)
		if err := rows.Scan(&key, &ns, &page.Title, &page.Interwiki, &page.Subobject); err != nil {
			return ir.Property{}, nil, errors.Storage(err, "scan page")
		}
		page.Namespace = ir.Namespace(ns)
		value = ir.NewPage(page)
	default:
		return ir.Property{}, nil, errors.Newf("family %s is not stored in a keyed table", family)
	}

	return ir.Property{Key: key}, value, nil
}

func readConceptRow(ctx context.Context, q querier, id int64) (ir.Concept, bool, error) {
	var (
		c        ir.Concept
		features int
	)
	err := q.QueryRowContext(ctx, `
		SELECT concept_txt, concept_docu, concept_features, concept_size, concept_depth
		FROM smw_fpt_conc WHERE s_id = ?
	`, id).Scan(&c.Description, &c.Documentation, &features, &c.Size, &c.Depth)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Concept{}, false, nil
	}
	if err != nil {
		return ir.Concept{}, false, errors.Storage(err, "read concept row")
	}
	c.Features = ir.QueryFeature(features)
	return c, true, nil
}

// Fingerprint returns the table → hash map for subj, or nil when the
// subject has no stored facts.
func (s *Store) Fingerprint(ctx context.Context, subj ir.Subject) (map[string]string, error) {
	id, ok, err := s.Resolve(ctx, subj, false)
	if err != nil || !ok {
		return nil, err
	}
	return readFingerprint(ctx, s.db, id)
}

// SubjectsUsingProperty returns every subject with at least one value
// for p, ordered by ID.
func (s *Store) SubjectsUsingProperty(ctx context.Context, p ir.Property) ([]ir.Subject, error) {
	pid, ok, err := s.Resolve(ctx, p.Subject(), false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []ir.Subject{}, nil
	}

	union := ""
	args := []any{}
	for i, tbl := range tables.Keyed() {
		if i > 0 {
			union += " UNION "
		}
		union += "SELECT s_id FROM " + tbl.Name + " WHERE p_id = ?"
		args = append(args, pid)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.smw_id, o.smw_namespace, o.smw_title, o.smw_iw, o.smw_subobject
		FROM smw_object_ids o
		WHERE o.smw_id IN (`+union+`)
		ORDER BY o.smw_id ASC
	`, args...)
	if err != nil {
		return nil, errors.Storagef(err, "subjects using %s", p)
	}
	subjects, _, err := scanSubjects(rows)
	return subjects, err
}

// SubjectsWithData returns every subject that has a fingerprint,
// ordered by namespace and title.
func (s *Store) SubjectsWithData(ctx context.Context) ([]ir.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.smw_id, o.smw_namespace, o.smw_title, o.smw_iw, o.smw_subobject
		FROM smw_object_ids o
		JOIN smw_fingerprints f ON f.s_id = o.smw_id
		ORDER BY o.smw_namespace ASC, o.smw_title ASC, o.smw_iw ASC, o.smw_subobject ASC
	`)
	if err != nil {
		return nil, errors.Storage(err, "subjects with data")
	}
	subjects, _, err := scanSubjects(rows)
	return subjects, err
}
