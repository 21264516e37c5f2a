package store

import (
	"context"
	"database/sql"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
)

// Resolve maps a subject to its internal ID.
//
// With allocate false this is a pure lookup and ok is false for unknown
// subjects. With allocate true a missing subject gets a fresh ID.
// Invalid subjects are never allocated.
func (s *Store) Resolve(ctx context.Context, subj ir.Subject, allocate bool) (id int64, ok bool, err error) {
	return resolve(ctx, s.db, subj, allocate)
}

func resolve(ctx context.Context, q querier, subj ir.Subject, allocate bool) (int64, bool, error) {
	if !subj.IsValid() {
		return 0, false, nil
	}

	if allocate {
		_, err := q.ExecContext(ctx, `
			INSERT INTO smw_object_ids (smw_namespace, smw_title, smw_iw, smw_subobject)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, int(subj.Namespace), subj.Title, subj.Interwiki, subj.Subobject)
		if err != nil {
			return 0, false, errors.Storagef(err, "allocate id for %s", subj)
		}
	}

	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT smw_id FROM smw_object_ids
		WHERE smw_namespace = ? AND smw_title = ? AND smw_iw = ? AND smw_subobject = ?
	`, int(subj.Namespace), subj.Title, subj.Interwiki, subj.Subobject).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Storagef(err, "resolve %s", subj)
	}
	return id, true, nil
}

// Exists reports whether subj currently has stored facts, that is,
// whether it has a fingerprint record.
func (s *Store) Exists(ctx context.Context, subj ir.Subject) (bool, error) {
	id, ok, err := s.Resolve(ctx, subj, false)
	if err != nil || !ok {
		return false, err
	}
	hashes, err := readFingerprint(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	return hashes != nil, nil
}

// subjectByID loads the subject behind an ID.
func subjectByID(ctx context.Context, q querier, id int64) (ir.Subject, bool, error) {
	var (
		subj ir.Subject
		ns   int
	)
	err := q.QueryRowContext(ctx, `
		SELECT smw_namespace, smw_title, smw_iw, smw_subobject
		FROM smw_object_ids WHERE smw_id = ?
	`, id).Scan(&ns, &subj.Title, &subj.Interwiki, &subj.Subobject)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Subject{}, false, nil
	}
	if err != nil {
		return ir.Subject{}, false, errors.Storagef(err, "load subject %d", id)
	}
	subj.Namespace = ir.Namespace(ns)
	return subj, true, nil
}

// scanSubjects reads (id, namespace, title, iw, subobject) rows.
func scanSubjects(rows *sql.Rows) ([]ir.Subject, []int64, error) {
	defer rows.Close()

	subjects := []ir.Subject{}
	ids := []int64{}
	for rows.Next() {
		var (
			id   int64
			ns   int
			subj ir.Subject
		)
		if err := rows.Scan(&id, &ns, &subj.Title, &subj.Interwiki, &subj.Subobject); err != nil {
			return nil, nil, errors.Storage(err, "scan subject")
		}
		subj.Namespace = ir.Namespace(ns)
		subjects = append(subjects, subj)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Storage(err, "iterate subjects")
	}
	return subjects, ids, nil
}
