package store

import (
	"context"
	"database/sql"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/tables"
)

// DeleteStats describes what DeleteSubject removed.
type DeleteStats struct {
	// Found is false when the subject never had an ID.
	Found       bool
	RowsDeleted int64
	IDsFreed    int
}

// DeleteSubject removes every trace of subj: its rows in all property
// tables, its concept cache when subj is a concept, its fingerprint, and
// its ID according to the retention policy. Subobjects of a top-level
// subject are deleted with it.
//
// Deleting an unknown subject succeeds without touching the database.
func (s *Store) DeleteSubject(ctx context.Context, subj ir.Subject) (DeleteStats, error) {
	var stats DeleteStats
	err := s.inTx(ctx, "delete subject", func(tx *sql.Tx) error {
		id, ok, err := resolve(ctx, tx, subj, false)
		if err != nil || !ok {
			return err
		}
		stats.Found = true

		ids := []int64{id}
		if subj.Subobject == "" {
			subIDs, err := subobjectIDs(ctx, tx, subj)
			if err != nil {
				return err
			}
			ids = append(ids, subIDs...)
		}

		for _, sid := range ids {
			n, freed, err := s.deleteOne(ctx, tx, sid, subj.IsConcept() && sid == id)
			if err != nil {
				return err
			}
			stats.RowsDeleted += n
			if freed {
				stats.IDsFreed++
			}
		}
		return nil
	})
	if err != nil {
		return DeleteStats{}, err
	}

	if stats.Found {
		s.logger.Debugw("delete subject",
			"subject", subj.Key(),
			"rows_deleted", stats.RowsDeleted,
			"ids_freed", stats.IDsFreed,
			"retention", string(s.retention))
	}
	return stats, nil
}

func (s *Store) deleteOne(ctx context.Context, tx *sql.Tx, id int64, concept bool) (int64, bool, error) {
	var total int64

	for _, tbl := range tables.All() {
		n, err := execCount(ctx, tx, "DELETE FROM "+tbl.Name+" WHERE s_id = ?", id)
		if err != nil {
			return 0, false, errors.Storagef(err, "delete from %s", tbl.Name)
		}
		total += n
	}

	if concept {
		n, err := execCount(ctx, tx, "DELETE FROM "+tables.ConceptCache+" WHERE s_id = ?", id)
		if err != nil {
			return 0, false, errors.Storage(err, "delete concept cache")
		}
		total += n
	}

	n, err := execCount(ctx, tx, "DELETE FROM "+tables.Fingerprints+" WHERE s_id = ?", id)
	if err != nil {
		return 0, false, errors.Storage(err, "delete fingerprint")
	}
	total += n

	free := s.retention == AlwaysFree
	if !free {
		referenced, err := isReferenced(ctx, tx, id)
		if err != nil {
			return 0, false, err
		}
		free = !referenced
	}
	if !free {
		return total, false, nil
	}

	n, err = dropReferences(ctx, tx, id)
	if err != nil {
		return 0, false, err
	}
	total += n

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+tables.IDs+" WHERE smw_id = ?", id); err != nil {
		return 0, false, errors.Storage(err, "free id")
	}
	return total, true, nil
}

// dropReferences removes every row that points at id before the ID is
// freed, so that no stored value survives as a dangling reference. The
// fingerprints of the owning subjects and the counts of the concept
// caches that held id are recomputed.
func dropReferences(ctx context.Context, tx *sql.Tx, id int64) (int64, error) {
	var total int64
	affected := map[int64]struct{}{}

	refs := [][2]string{{tables.WikiPage, "o_id"}}
	for _, tbl := range tables.Keyed() {
		refs = append(refs, [2]string{tbl.Name, "p_id"})
	}
	for _, ref := range refs {
		table, column := ref[0], ref[1]
		if err := collectSubjects(ctx, tx, table, column, id, affected); err != nil {
			return 0, err
		}
		n, err := execCount(ctx, tx, "DELETE FROM "+table+" WHERE "+column+" = ?", id)
		if err != nil {
			return 0, errors.Storagef(err, "drop references in %s", table)
		}
		total += n
	}

	concepts := map[int64]struct{}{}
	if err := collectSubjects(ctx, tx, tables.ConceptCache, "o_id", id, concepts); err != nil {
		return 0, err
	}
	n, err := execCount(ctx, tx, "DELETE FROM "+tables.ConceptCache+" WHERE o_id = ?", id)
	if err != nil {
		return 0, errors.Storage(err, "drop concept cache members")
	}
	total += n
	if err := recountCaches(ctx, tx, concepts); err != nil {
		return 0, err
	}

	for sid := range affected {
		if err := refreshFingerprint(ctx, tx, sid); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// isReferenced reports whether any other row points at id as a property,
// a page value or a concept cache member.
func isReferenced(ctx context.Context, q querier, id int64) (bool, error) {
	query := "SELECT EXISTS (SELECT 1 FROM " + tables.WikiPage + " WHERE o_id = ?1"
	for _, tbl := range tables.Keyed() {
		query += " UNION ALL SELECT 1 FROM " + tbl.Name + " WHERE p_id = ?1"
	}
	query += " UNION ALL SELECT 1 FROM " + tables.ConceptCache + " WHERE o_id = ?1)"

	var exists bool
	if err := q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, errors.Storage(err, "check references")
	}
	return exists, nil
}

func subobjectIDs(ctx context.Context, q querier, subj ir.Subject) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT smw_id FROM smw_object_ids
		WHERE smw_namespace = ? AND smw_title = ? AND smw_iw = ? AND smw_subobject != ''
		ORDER BY smw_id ASC
	`, int(subj.Namespace), subj.Title, subj.Interwiki)
	if err != nil {
		return nil, errors.Storage(err, "list subobjects")
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Storage(err, "scan subobject id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage(err, "iterate subobjects")
	}
	return ids, nil
}

func execCount(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
