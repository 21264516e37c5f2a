package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/queryir"
)

// createTestStore creates a new store on a temporary file for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock returns a clock pinned to a known instant.
func fixedClock() func() time.Time {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

// page builds semantic data for title with the given facts.
func page(title string, ns ir.Namespace, facts map[string][]ir.DataItem) *ir.SemanticData {
	d := ir.NewSemanticData(ir.NewSubject(title, ns))
	for key, values := range facts {
		for _, v := range values {
			d.Add(ir.NewProperty(key), v)
		}
	}
	return d
}

// conceptPage builds a concept definition.
func conceptPage(t *testing.T, title string, desc queryir.Description) *ir.SemanticData {
	t.Helper()
	c, err := queryir.NewConcept(desc, "")
	require.NoError(t, err)
	d := ir.NewSemanticData(ir.NewSubject(title, ir.NSConcept))
	d.Add(ir.NewProperty(ir.PropConcept), c)
	return d
}

// mustWrite stores data and fails the test on error.
func mustWrite(t *testing.T, s *Store, data *ir.SemanticData) WriteStats {
	t.Helper()
	stats, err := s.UpdateData(context.Background(), data)
	require.NoError(t, err)
	return stats
}

// countRows counts the rows of table.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
