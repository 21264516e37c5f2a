package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/queryir"
	"github.com/roach88/semstore/internal/tables"
)

// ErrNotCachable is returned when a concept cache operation targets a
// subject without a usable concept description.
var ErrNotCachable = errors.New("not cachable")

// ReadConceptCache returns the Cache Record of concept, or nil when the
// subject has no concept definition.
func (s *Store) ReadConceptCache(ctx context.Context, concept ir.Subject) (*ir.CacheRecord, error) {
	id, ok, err := s.Resolve(ctx, concept, false)
	if err != nil || !ok {
		return nil, err
	}
	return readCacheRecord(ctx, s.db, id)
}

func readCacheRecord(ctx context.Context, q querier, id int64) (*ir.CacheRecord, error) {
	var (
		rec      ir.CacheRecord
		features int
		date     sql.NullString
		count    sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT concept_features, concept_size, concept_depth, cache_date, cache_count
		FROM smw_fpt_conc WHERE s_id = ?
	`, id).Scan(&features, &rec.Size, &rec.Depth, &date, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Storage(err, "read cache record")
	}

	rec.Features = ir.QueryFeature(features)
	rec.Status = ir.CacheEmpty
	if date.Valid {
		t, err := tables.ParseTime(date.String)
		if err != nil {
			return nil, errors.Wrapf(err, "stored cache date %q", date.String)
		}
		rec.Status = ir.CacheFull
		rec.Date = t
		rec.Count = int(count.Int64)
	}
	return &rec, nil
}

// WriteConceptCache atomically replaces the cached member set of concept
// and marks its Cache Record full as of at. Members without an ID are
// skipped.
func (s *Store) WriteConceptCache(ctx context.Context, concept ir.Subject, members []ir.Subject, at time.Time) (ir.CacheRecord, error) {
	var rec ir.CacheRecord
	err := s.inTx(ctx, "write concept cache", func(tx *sql.Tx) error {
		id, err := conceptID(ctx, tx, concept)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(members))
		for _, m := range members {
			mid, ok, err := resolve(ctx, tx, m, false)
			if err != nil {
				return err
			}
			if ok {
				ids = append(ids, mid)
			}
		}

		r, err := replaceCache(ctx, tx, id, ids, at)
		rec = r
		return err
	})
	return rec, err
}

// DeleteConceptCache purges the cached member set of concept and resets
// its Cache Record to empty. Subjects without a concept row are a no-op.
func (s *Store) DeleteConceptCache(ctx context.Context, concept ir.Subject) error {
	return s.inTx(ctx, "delete concept cache", func(tx *sql.Tx) error {
		id, ok, err := resolve(ctx, tx, concept, false)
		if err != nil || !ok {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+tables.ConceptCache+" WHERE s_id = ?", id); err != nil {
			return errors.Storage(err, "delete concept cache")
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE smw_fpt_conc SET cache_date = NULL, cache_count = NULL WHERE s_id = ?
		`, id)
		if err != nil {
			return errors.Storage(err, "reset cache record")
		}
		return nil
	})
}

// RefreshConceptCache recomputes the member set of concept from its
// stored description and replaces the cache in one transaction.
func (s *Store) RefreshConceptCache(ctx context.Context, concept ir.Subject) (ir.CacheRecord, error) {
	var rec ir.CacheRecord
	err := s.inTx(ctx, "refresh concept cache", func(tx *sql.Tx) error {
		id, err := conceptID(ctx, tx, concept)
		if err != nil {
			return err
		}

		c, _, err := readConceptRow(ctx, tx, id)
		if err != nil {
			return err
		}
		desc, err := queryir.Unmarshal([]byte(c.Description))
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "concept %s", concept), ErrNotCachable)
		}
		query, params, err := s.compiler.Compile(desc)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "concept %s", concept), ErrNotCachable)
		}

		ids, err := queryIDs(ctx, tx, query, params)
		if err != nil {
			return err
		}

		r, err := replaceCache(ctx, tx, id, ids, s.now())
		rec = r
		return err
	})
	if err != nil {
		return ir.CacheRecord{}, err
	}

	s.logger.Debugw("refresh concept cache", "concept", concept.Key(), "count", rec.Count)
	return rec, nil
}

// ConceptMembers returns the cached members of concept ordered by ID.
func (s *Store) ConceptMembers(ctx context.Context, concept ir.Subject) ([]ir.Subject, error) {
	id, ok, err := s.Resolve(ctx, concept, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []ir.Subject{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.smw_id, o.smw_namespace, o.smw_title, o.smw_iw, o.smw_subobject
		FROM smw_concept_cache c
		JOIN smw_object_ids o ON o.smw_id = c.o_id
		WHERE c.s_id = ?
		ORDER BY o.smw_id ASC
	`, id)
	if err != nil {
		return nil, errors.Storage(err, "read concept members")
	}
	subjects, _, err := scanSubjects(rows)
	return subjects, err
}

// conceptID resolves concept and checks it has a concept row.
func conceptID(ctx context.Context, q querier, concept ir.Subject) (int64, error) {
	id, ok, err := resolve(ctx, q, concept, false)
	if err != nil {
		return 0, err
	}
	if ok {
		var exists bool
		err := q.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM "+tables.Concept+" WHERE s_id = ?)", id).Scan(&exists)
		if err != nil {
			return 0, errors.Storage(err, "check concept row")
		}
		ok = exists
	}
	if !ok {
		return 0, errors.Mark(errors.Newf("%s has no concept description", concept), ErrNotCachable)
	}
	return id, nil
}

func queryIDs(ctx context.Context, q querier, query string, params []any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, errors.Storage(err, "run concept query")
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Storage(err, "scan concept member")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage(err, "iterate concept members")
	}
	return ids, nil
}

func replaceCache(ctx context.Context, q querier, id int64, members []int64, at time.Time) (ir.CacheRecord, error) {
	if _, err := q.ExecContext(ctx, "DELETE FROM "+tables.ConceptCache+" WHERE s_id = ?", id); err != nil {
		return ir.CacheRecord{}, errors.Storage(err, "clear concept cache")
	}

	count := 0
	for _, m := range members {
		res, err := q.ExecContext(ctx,
			"INSERT INTO "+tables.ConceptCache+" (s_id, o_id) VALUES (?, ?) ON CONFLICT DO NOTHING", id, m)
		if err != nil {
			return ir.CacheRecord{}, errors.Storage(err, "insert concept member")
		}
		n, _ := res.RowsAffected()
		count += int(n)
	}

	at = at.UTC()
	_, err := q.ExecContext(ctx, `
		UPDATE smw_fpt_conc SET cache_date = ?, cache_count = ? WHERE s_id = ?
	`, tables.FormatTime(at), count, id)
	if err != nil {
		return ir.CacheRecord{}, errors.Storage(err, "update cache record")
	}

	rec, err := readCacheRecord(ctx, q, id)
	if err != nil {
		return ir.CacheRecord{}, err
	}
	return *rec, nil
}

// recountCaches resets cache_count of each filled concept cache in ids to
// the number of members it still holds.
func recountCaches(ctx context.Context, q querier, ids map[int64]struct{}) error {
	for id := range ids {
		_, err := q.ExecContext(ctx, `
			UPDATE smw_fpt_conc
			SET cache_count = (SELECT COUNT(*) FROM smw_concept_cache WHERE s_id = ?1)
			WHERE s_id = ?1 AND cache_count IS NOT NULL
		`, id)
		if err != nil {
			return errors.Storagef(err, "recount concept cache %d", id)
		}
	}
	return nil
}
