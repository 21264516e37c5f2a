package store

import (
	"context"
	"database/sql"
	"maps"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/tables"
)

// WriteStats describes the row changes of one write.
type WriteStats struct {
	TablesChanged []string
	RowsInserted  int64
	RowsDeleted   int64
}

// Changed reports whether the write touched any property table.
func (w WriteStats) Changed() bool {
	return len(w.TablesChanged) > 0
}

// UpdateData replaces the stored facts of data's subject with data.
//
// The new rows are diffed against the subject's fingerprint and only
// tables whose hash changed are rewritten, so writing identical data
// twice performs no row mutations. Writing an empty set removes the
// fingerprint. Property and page-value IDs are allocated as needed.
func (s *Store) UpdateData(ctx context.Context, data *ir.SemanticData) (WriteStats, error) {
	subj := data.Subject()
	if !subj.IsValid() {
		return WriteStats{}, nil
	}

	var stats WriteStats
	err := s.inTx(ctx, "update data", func(tx *sql.Tx) error {
		id, _, err := resolve(ctx, tx, subj, true)
		if err != nil {
			return err
		}
		stats, err = writeData(ctx, tx, id, data)
		return err
	})
	if err != nil {
		return WriteStats{}, err
	}

	s.logger.Debugw("update data",
		"subject", subj.Key(),
		"tables_changed", stats.TablesChanged,
		"rows_inserted", stats.RowsInserted,
		"rows_deleted", stats.RowsDeleted)
	return stats, nil
}

// ClearData removes every stored fact of subj but keeps its ID. Unknown
// subjects are a no-op and never get an ID.
func (s *Store) ClearData(ctx context.Context, subj ir.Subject) (WriteStats, error) {
	var stats WriteStats
	err := s.inTx(ctx, "clear data", func(tx *sql.Tx) error {
		id, ok, err := resolve(ctx, tx, subj, false)
		if err != nil || !ok {
			return err
		}
		stats, err = writeData(ctx, tx, id, ir.NewSemanticData(subj))
		return err
	})
	if err != nil {
		return WriteStats{}, err
	}

	s.logger.Debugw("clear data", "subject", subj.Key(), "rows_deleted", stats.RowsDeleted)
	return stats, nil
}

func writeData(ctx context.Context, q querier, id int64, data *ir.SemanticData) (WriteStats, error) {
	old, err := readFingerprint(ctx, q, id)
	if err != nil {
		return WriteStats{}, err
	}

	groups := groupByTable(data)
	hashes := fingerprintOf(groups)

	stats := WriteStats{TablesChanged: []string{}}
	for _, tbl := range tables.All() {
		if old[tbl.Name] == hashes[tbl.Name] {
			continue
		}

		deleted, err := deleteTableRows(ctx, q, tbl, id)
		if err != nil {
			return WriteStats{}, err
		}
		inserted, err := insertRows(ctx, q, tbl, id, groups[tbl.Name])
		if err != nil {
			return WriteStats{}, err
		}

		stats.TablesChanged = append(stats.TablesChanged, tbl.Name)
		stats.RowsDeleted += deleted
		stats.RowsInserted += inserted
	}

	if !maps.Equal(old, hashes) {
		if err := writeFingerprint(ctx, q, id, hashes); err != nil {
			return WriteStats{}, err
		}
	}
	return stats, nil
}

// deleteTableRows removes the rows id owns in tbl. Replacing the concept
// row also drops the cached result set, resetting the cache to empty.
func deleteTableRows(ctx context.Context, q querier, tbl tables.Table, id int64) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM "+tbl.Name+" WHERE s_id = ?", id)
	if err != nil {
		return 0, errors.Storagef(err, "delete from %s", tbl.Name)
	}
	n, _ := res.RowsAffected()

	if tbl.Fixed {
		res, err := q.ExecContext(ctx, "DELETE FROM "+tables.ConceptCache+" WHERE s_id = ?", id)
		if err != nil {
			return 0, errors.Storage(err, "delete concept cache")
		}
		cached, _ := res.RowsAffected()
		n += cached
	}
	return n, nil
}

func insertRows(ctx context.Context, q querier, tbl tables.Table, id int64, rows []assertion) (int64, error) {
	var inserted int64
	for _, a := range rows {
		res, err := insertRow(ctx, q, tbl, id, a)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	return inserted, nil
}

func insertRow(ctx context.Context, q querier, tbl tables.Table, id int64, a assertion) (sql.Result, error) {
	if c, ok := a.value.(ir.Concept); ok {
		res, err := q.ExecContext(ctx, `
			INSERT INTO smw_fpt_conc
			(s_id, concept_txt, concept_docu, concept_features, concept_size, concept_depth)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, c.Description, c.Documentation, int(c.Features), c.Size, c.Depth)
		if err != nil {
			return nil, errors.Storage(err, "insert concept row")
		}
		return res, nil
	}

	pid, _, err := resolve(ctx, q, a.prop.Subject(), true)
	if err != nil {
		return nil, err
	}

	var arg any
	if page, ok := a.value.(ir.Page); ok {
		oid, found, err := resolve(ctx, q, page.Subject, true)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.Newf("page value %s cannot be stored", page.Subject)
		}
		arg = oid
	} else {
		v, ok := tables.ScalarArg(a.value)
		if !ok {
			return nil, errors.Newf("unsupported value type %T", a.value)
		}
		arg = v
	}

	res, err := q.ExecContext(ctx,
		"INSERT INTO "+tbl.Name+" (s_id, p_id, "+tbl.Column+") VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		id, pid, arg)
	if err != nil {
		return nil, errors.Storagef(err, "insert into %s", tbl.Name)
	}
	return res, nil
}

// refreshFingerprint recomputes the fingerprint of id from its stored
// rows. Used after operations that rewrite rows in place.
func refreshFingerprint(ctx context.Context, q querier, id int64) error {
	subj, ok, err := subjectByID(ctx, q, id)
	if err != nil || !ok {
		return err
	}
	data, err := readData(ctx, q, id, subj)
	if err != nil {
		return err
	}
	return writeFingerprint(ctx, q, id, fingerprintOf(groupByTable(data)))
}
