// Package tables describes the relational layout of the fact store.
//
// Every value Family is persisted in exactly one table. All property
// tables except the concept table are keyed by (s_id, p_id, value
// columns); the concept table holds at most one row per subject and
// doubles as the home of the concept Cache Record.
//
// The layout is shared by package store (reads and writes) and package
// querysql (compiled concept queries).
package tables

import (
	"strconv"
	"time"

	"github.com/roach88/semstore/internal/ir"
)

// Fixed table names.
const (
	IDs          = "smw_object_ids"
	Fingerprints = "smw_fingerprints"
	ConceptCache = "smw_concept_cache"

	Blob     = "smw_di_blob"
	Number   = "smw_di_number"
	Boolean  = "smw_di_bool"
	Time     = "smw_di_time"
	WikiPage = "smw_di_wikipage"
	Concept  = "smw_fpt_conc"
)

// Table describes one property table.
type Table struct {
	Name   string
	Family ir.Family
	// Column is the value column. Empty for the concept table, whose
	// value spans several columns.
	Column string
	// Fixed tables carry a single predefined property and have no p_id.
	Fixed bool
}

var all = []Table{
	{Name: Blob, Family: ir.FamilyBlob, Column: "o_blob"},
	{Name: Number, Family: ir.FamilyNumber, Column: "o_num"},
	{Name: Boolean, Family: ir.FamilyBoolean, Column: "o_bool"},
	{Name: Time, Family: ir.FamilyTime, Column: "o_time"},
	{Name: WikiPage, Family: ir.FamilyPage, Column: "o_id"},
	{Name: Concept, Family: ir.FamilyConcept, Fixed: true},
}

// All returns every property table in a fixed order.
func All() []Table {
	out := make([]Table, len(all))
	copy(out, all)
	return out
}

// Keyed returns the property tables that carry a p_id column.
func Keyed() []Table {
	var out []Table
	for _, t := range all {
		if !t.Fixed {
			out = append(out, t)
		}
	}
	return out
}

// ForFamily returns the table storing values of family f.
func ForFamily(f ir.Family) (Table, bool) {
	for _, t := range all {
		if t.Family == f {
			return t, true
		}
	}
	return Table{}, false
}

// ByName returns the table with the given name.
func ByName(name string) (Table, bool) {
	for _, t := range all {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// ScalarArg converts a value of a scalar family to the SQL argument
// stored in the table's value column. Page and concept values are not
// scalar: pages need an ID lookup and concepts span several columns.
func ScalarArg(v ir.DataItem) (any, bool) {
	switch val := v.(type) {
	case ir.Blob:
		return ir.CanonicalString(string(val)), true
	case ir.Number:
		return float64(val), true
	case ir.Boolean:
		if val {
			return int64(1), true
		}
		return int64(0), true
	case ir.Time:
		return FormatTime(val.T), true
	default:
		return nil, false
	}
}

// FormatTime is the stored representation of a time value.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// FormatBool renders o_bool for canonical row strings.
func FormatBool(v int64) string {
	return strconv.FormatBool(v != 0)
}
