package store

import (
	"context"
	"database/sql"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
)

// PageRef is a subject together with its internal ID, as returned by the
// bulk page lookups.
type PageRef struct {
	ID      int64
	Subject ir.Subject
}

// ListSubjectsInNamespace returns every top-level subject with an ID in
// ns, ordered by ID.
func (s *Store) ListSubjectsInNamespace(ctx context.Context, ns ir.Namespace) ([]PageRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT smw_id, smw_namespace, smw_title, smw_iw, smw_subobject
		FROM smw_object_ids
		WHERE smw_namespace = ? AND smw_subobject = ''
		ORDER BY smw_id ASC
	`, int(ns))
	if err != nil {
		return nil, errors.Storagef(err, "list namespace %d", ns)
	}
	return pageRefs(rows)
}

// ListSubjectsInIDRange returns the top-level subjects of ns whose ID lies
// in [lo, hi], ordered by ID ascending.
func (s *Store) ListSubjectsInIDRange(ctx context.Context, ns ir.Namespace, lo, hi int64) ([]PageRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT smw_id, smw_namespace, smw_title, smw_iw, smw_subobject
		FROM smw_object_ids
		WHERE smw_namespace = ? AND smw_subobject = '' AND smw_id BETWEEN ? AND ?
		ORDER BY smw_id ASC
	`, int(ns), lo, hi)
	if err != nil {
		return nil, errors.Storagef(err, "list namespace %d ids %d-%d", ns, lo, hi)
	}
	return pageRefs(rows)
}

// MaxIDInNamespace returns the largest ID in ns, or 0 when the namespace
// is empty.
func (s *Store) MaxIDInNamespace(ctx context.Context, ns ir.Namespace) (int64, error) {
	var maxID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(smw_id) FROM smw_object_ids WHERE smw_namespace = ?
	`, int(ns)).Scan(&maxID)
	if err != nil {
		return 0, errors.Storagef(err, "max id in namespace %d", ns)
	}
	return maxID.Int64, nil
}

func pageRefs(rows *sql.Rows) ([]PageRef, error) {
	subjects, ids, err := scanSubjects(rows)
	if err != nil {
		return nil, err
	}
	refs := make([]PageRef, len(subjects))
	for i := range subjects {
		refs[i] = PageRef{ID: ids[i], Subject: subjects[i]}
	}
	return refs, nil
}
