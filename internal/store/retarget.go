package store

import (
	"context"
	"database/sql"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/tables"
)

// RetargetStats describes the references moved by Retarget.
type RetargetStats struct {
	SourceID          int64
	TargetID          int64
	RowsMoved         int64
	SubjectsRefreshed int
}

// Retarget rewrites every reference to source so that it points at
// target: page values, property IDs and concept cache members. Subjects
// whose rows moved get their fingerprint recomputed, and concept caches
// that held source get their member count recomputed.
//
// An unknown source is a no-op. The target is allocated if needed.
func (s *Store) Retarget(ctx context.Context, source, target ir.Subject) (RetargetStats, error) {
	var stats RetargetStats
	err := s.inTx(ctx, "retarget", func(tx *sql.Tx) error {
		srcID, ok, err := resolve(ctx, tx, source, false)
		if err != nil || !ok {
			return err
		}
		tgtID, ok, err := resolve(ctx, tx, target, true)
		if err != nil {
			return err
		}
		if !ok || srcID == tgtID {
			return nil
		}
		stats.SourceID, stats.TargetID = srcID, tgtID

		affected := map[int64]struct{}{}

		// Page values.
		moved, err := moveColumn(ctx, tx, tables.WikiPage, "o_id", srcID, tgtID, affected)
		if err != nil {
			return err
		}
		stats.RowsMoved += moved

		// Property IDs, when the source is itself a property page.
		for _, tbl := range tables.Keyed() {
			moved, err := moveColumn(ctx, tx, tbl.Name, "p_id", srcID, tgtID, affected)
			if err != nil {
				return err
			}
			stats.RowsMoved += moved
		}

		concepts := map[int64]struct{}{}
		moved, err = moveColumn(ctx, tx, tables.ConceptCache, "o_id", srcID, tgtID, concepts)
		if err != nil {
			return err
		}
		stats.RowsMoved += moved
		if err := recountCaches(ctx, tx, concepts); err != nil {
			return err
		}

		for sid := range affected {
			if err := refreshFingerprint(ctx, tx, sid); err != nil {
				return err
			}
		}
		stats.SubjectsRefreshed = len(affected)
		return nil
	})
	if err != nil {
		return RetargetStats{}, err
	}

	s.logger.Debugw("retarget",
		"source", source.Key(),
		"target", target.Key(),
		"rows_moved", stats.RowsMoved,
		"subjects_refreshed", stats.SubjectsRefreshed)
	return stats, nil
}

// moveColumn rewrites column from src to tgt in table. Rows that would
// duplicate an existing row are dropped instead. The owning s_id of each
// moved row is recorded in affected when it is non-nil.
func moveColumn(ctx context.Context, q querier, table, column string, src, tgt int64, affected map[int64]struct{}) (int64, error) {
	if affected != nil {
		if err := collectSubjects(ctx, q, table, column, src, affected); err != nil {
			return 0, err
		}
	}

	res, err := q.ExecContext(ctx,
		"UPDATE OR IGNORE "+table+" SET "+column+" = ? WHERE "+column+" = ?", tgt, src)
	if err != nil {
		return 0, errors.Storagef(err, "retarget: update %s.%s", table, column)
	}
	moved, _ := res.RowsAffected()

	if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+column+" = ?", src); err != nil {
		return 0, errors.Storagef(err, "retarget: drop duplicates in %s", table)
	}
	return moved, nil
}

// collectSubjects records in into the s_id of every row of table whose
// column equals id.
func collectSubjects(ctx context.Context, q querier, table, column string, id int64, into map[int64]struct{}) error {
	rows, err := q.QueryContext(ctx, "SELECT DISTINCT s_id FROM "+table+" WHERE "+column+" = ?", id)
	if err != nil {
		return errors.Storagef(err, "scan %s.%s", table, column)
	}
	defer rows.Close()

	for rows.Next() {
		var sid int64
		if err := rows.Scan(&sid); err != nil {
			return errors.Storage(err, "scan subject id")
		}
		into[sid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return errors.Storage(err, "iterate subject ids")
	}
	return nil
}
