package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/tables"
)

// assertion is one (property, value) pair routed to a table.
type assertion struct {
	prop  ir.Property
	value ir.DataItem
}

// canonicalRow is the fingerprint encoding of one stored row. It uses
// keys rather than IDs so the hash can be computed without touching the
// ID table.
func canonicalRow(a assertion) string {
	return a.prop.Key + "\x1f" + a.value.CanonicalKey()
}

// groupByTable routes every assertion of data to its property table.
// Concept values always land in the concept table under "_CONC"; that
// table holds a single row per subject, so only the first is kept.
func groupByTable(data *ir.SemanticData) map[string][]assertion {
	groups := make(map[string][]assertion)
	data.ForEach(func(p ir.Property, v ir.DataItem) {
		tbl, ok := tables.ForFamily(v.Family())
		if !ok {
			return
		}
		if tbl.Fixed {
			if len(groups[tbl.Name]) > 0 {
				return
			}
			p = ir.NewProperty(ir.PropConcept)
		}
		groups[tbl.Name] = append(groups[tbl.Name], assertion{prop: p, value: v})
	})
	return groups
}

// fingerprintOf hashes each non-empty table group.
func fingerprintOf(groups map[string][]assertion) map[string]string {
	hashes := make(map[string]string, len(groups))
	for name, as := range groups {
		if len(as) == 0 {
			continue
		}
		rows := make([]string, len(as))
		for i, a := range as {
			rows[i] = canonicalRow(a)
		}
		hashes[name] = ir.TableHash(rows)
	}
	return hashes
}

// marshalFingerprint converts the table hash map to JSON TEXT.
// json.Marshal sorts map keys, giving a stable encoding.
func marshalFingerprint(hashes map[string]string) (string, error) {
	data, err := json.Marshal(hashes)
	if err != nil {
		return "", errors.Wrap(err, "marshal fingerprint")
	}
	return string(data), nil
}

func unmarshalFingerprint(text string) (map[string]string, error) {
	hashes := map[string]string{}
	if err := json.Unmarshal([]byte(text), &hashes); err != nil {
		return nil, errors.Wrap(err, "unmarshal fingerprint")
	}
	return hashes, nil
}

// readFingerprint returns nil when the subject has no fingerprint.
func readFingerprint(ctx context.Context, q querier, id int64) (map[string]string, error) {
	var text string
	err := q.QueryRowContext(ctx, `SELECT hashes FROM smw_fingerprints WHERE s_id = ?`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Storagef(err, "read fingerprint %d", id)
	}
	return unmarshalFingerprint(text)
}

// writeFingerprint stores hashes, or removes the record when hashes is
// empty so that no ghost fingerprint outlives the rows it describes.
func writeFingerprint(ctx context.Context, q querier, id int64, hashes map[string]string) error {
	if len(hashes) == 0 {
		if _, err := q.ExecContext(ctx, `DELETE FROM smw_fingerprints WHERE s_id = ?`, id); err != nil {
			return errors.Storagef(err, "delete fingerprint %d", id)
		}
		return nil
	}

	text, err := marshalFingerprint(hashes)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO smw_fingerprints (s_id, hashes) VALUES (?, ?)
		ON CONFLICT(s_id) DO UPDATE SET hashes = excluded.hashes
	`, id, text)
	if err != nil {
		return errors.Storagef(err, "write fingerprint %d", id)
	}
	return nil
}
