package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/queryir"
	"github.com/roach88/semstore/internal/tables"
)

func TestDeleteSubject_RemovesAllRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := ir.NewSubject("A", ir.NSMain)

	mustWrite(t, s, page("A", ir.NSMain, map[string][]ir.DataItem{
		"Color": {ir.Blob("red")},
		"Size":  {ir.Number(2)},
		"Link":  {ir.NewPage(ir.NewSubject("B", ir.NSMain))},
	}))

	stats, err := s.DeleteSubject(ctx, a)
	require.NoError(t, err)
	assert.True(t, stats.Found)
	// three property rows plus the fingerprint
	assert.Equal(t, int64(4), stats.RowsDeleted)

	for _, tbl := range tables.All() {
		assert.Equal(t, 0, countRows(t, s, tbl.Name), tbl.Name)
	}
	assert.Equal(t, 0, countRows(t, s, tables.Fingerprints))

	_, ok, err := s.Resolve(ctx, a, false)
	require.NoError(t, err)
	assert.False(t, ok, "unreferenced id is freed")
}

func TestDeleteSubject_UnknownSubjectIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := ir.NewSubject("Never", ir.NSMain)

	stats, err := s.DeleteSubject(ctx, a)
	require.NoError(t, err)
	assert.False(t, stats.Found)
	assert.Zero(t, stats.RowsDeleted)

	_, ok, err := s.Resolve(ctx, a, false)
	require.NoError(t, err)
	assert.False(t, ok, "delete must not allocate an id")
}

func TestDeleteSubject_TwiceEqualsOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := ir.NewSubject("A", ir.NSMain)
	mustWrite(t, s, page("A", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))

	_, err := s.DeleteSubject(ctx, a)
	require.NoError(t, err)
	idsAfterFirst := countRows(t, s, tables.IDs)

	second, err := s.DeleteSubject(ctx, a)
	require.NoError(t, err)
	assert.Zero(t, second.RowsDeleted)
	assert.Equal(t, idsAfterFirst, countRows(t, s, tables.IDs))
}

func TestDeleteSubject_ConceptPurgesCache(t *testing.T) {
	s := createTestStore(t, WithClock(fixedClock()))
	ctx := context.Background()
	foo := ir.NewSubject("Foo", ir.NSConcept)

	mustWrite(t, s, page("A", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	mustWrite(t, s, page("B", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	mustWrite(t, s, conceptPage(t, "Foo", queryir.PropertyValue{
		Property: ir.NewProperty("Color"),
		Value:    ir.Blob("red"),
	}))
	rec, err := s.RefreshConceptCache(ctx, foo)
	require.NoError(t, err)
	require.Equal(t, 2, rec.Count)

	stats, err := s.DeleteSubject(ctx, foo)
	require.NoError(t, err)
	// concept row, two cache rows, fingerprint
	assert.Equal(t, int64(4), stats.RowsDeleted)
	assert.Equal(t, 0, countRows(t, s, tables.Concept))
	assert.Equal(t, 0, countRows(t, s, tables.ConceptCache))

	got, err := s.ReadConceptCache(ctx, foo)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteSubject_RemovesSubobjects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := ir.NewSubject("A", ir.NSMain)

	mustWrite(t, s, page("A", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	sub := ir.NewSemanticData(a.WithSubobject("part"))
	sub.Add(ir.NewProperty("Weight"), ir.Number(3))
	mustWrite(t, s, sub)

	stats, err := s.DeleteSubject(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.IDsFreed)
	assert.Equal(t, 0, countRows(t, s, tables.Number))
	assert.Equal(t, 0, countRows(t, s, tables.Fingerprints))
}

func TestDeleteSubject_IDRetention(t *testing.T) {
	tests := []struct {
		name      string
		policy    IDRetention
		keepsID   bool
		linkKnown bool
	}{
		{"retain if referenced keeps the id", RetainIfReferenced, true, true},
		{"always free drops the id", AlwaysFree, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t, WithIDRetention(tt.policy))
			ctx := context.Background()
			a := ir.NewSubject("A", ir.NSMain)
			link := ir.NewProperty("Link")

			mustWrite(t, s, page("A", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
			mustWrite(t, s, page("X", ir.NSMain, map[string][]ir.DataItem{"Link": {ir.NewPage(a)}}))

			stats, err := s.DeleteSubject(ctx, a)
			require.NoError(t, err)

			_, ok, err := s.Resolve(ctx, a, false)
			require.NoError(t, err)
			assert.Equal(t, tt.keepsID, ok)
			if tt.keepsID {
				assert.Zero(t, stats.IDsFreed)
			} else {
				assert.Equal(t, 1, stats.IDsFreed)
			}

			x, err := s.ReadSemanticData(ctx, ir.NewSubject("X", ir.NSMain))
			require.NoError(t, err)
			assert.Equal(t, tt.linkKnown, x.Has(link))

			exists, err := s.Exists(ctx, a)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

// =============================================================================
// Always-free retention
// =============================================================================

func TestDeleteSubject_AlwaysFreeDropsReferences(t *testing.T) {
	s := createTestStore(t, WithIDRetention(AlwaysFree))
	ctx := context.Background()
	a := ir.NewSubject("A", ir.NSMain)
	xSubj := ir.NewSubject("X", ir.NSMain)
	link := ir.NewProperty("Link")
	linkToA := func() *ir.SemanticData {
		return page("X", ir.NSMain, map[string][]ir.DataItem{
			"Link":  {ir.NewPage(a)},
			"Color": {ir.Blob("red")},
		})
	}

	mustWrite(t, s, page("A", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("blue")}}))
	mustWrite(t, s, linkToA())

	stats, err := s.DeleteSubject(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.IDsFreed)
	// A's blob row and fingerprint plus X's link row.
	assert.Equal(t, int64(3), stats.RowsDeleted)
	assert.Zero(t, countRows(t, s, tables.WikiPage))

	x, err := s.ReadSemanticData(ctx, xSubj)
	require.NoError(t, err)
	assert.False(t, x.Has(link))
	assert.Equal(t, []ir.DataItem{ir.Blob("red")}, x.Values(ir.NewProperty("Color")))

	// The fingerprint no longer claims the link, so rewriting it stores it
	// again against A's new id.
	again := mustWrite(t, s, linkToA())
	assert.True(t, again.Changed())
	assert.Equal(t, []string{tables.WikiPage}, again.TablesChanged)

	x, err = s.ReadSemanticData(ctx, xSubj)
	require.NoError(t, err)
	assert.Equal(t, []ir.DataItem{ir.NewPage(a)}, x.Values(link))
}

func TestDeleteSubject_AlwaysFreeDropsPropertyRows(t *testing.T) {
	s := createTestStore(t, WithIDRetention(AlwaysFree))
	ctx := context.Background()
	colour := ir.NewProperty("Colour")

	mustWrite(t, s, page("X", ir.NSMain, map[string][]ir.DataItem{
		"Colour": {ir.Blob("red")},
		"Size":   {ir.Number(3)},
	}))

	_, err := s.DeleteSubject(ctx, colour.Subject())
	require.NoError(t, err)
	assert.Zero(t, countRows(t, s, tables.Blob))

	// Only the number row is left in the fingerprint.
	again := mustWrite(t, s, page("X", ir.NSMain, map[string][]ir.DataItem{"Size": {ir.Number(3)}}))
	assert.False(t, again.Changed())
}

func TestDeleteSubject_AlwaysFreeRecountsConceptCaches(t *testing.T) {
	s := createTestStore(t, WithIDRetention(AlwaysFree))
	ctx := context.Background()
	a := ir.NewSubject("A", ir.NSMain)
	b := ir.NewSubject("B", ir.NSMain)
	foo := ir.NewSubject("Foo", ir.NSConcept)

	mustWrite(t, s, page("A", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	mustWrite(t, s, page("B", ir.NSMain, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	mustWrite(t, s, conceptPage(t, "Foo", queryir.Category{Category: ir.NewSubject("Cities", ir.NSCategory)}))
	_, err := s.WriteConceptCache(ctx, foo, []ir.Subject{a, b}, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = s.DeleteSubject(ctx, a)
	require.NoError(t, err)

	members, err := s.ConceptMembers(ctx, foo)
	require.NoError(t, err)
	assert.Equal(t, []ir.Subject{b}, members)

	rec, err := s.ReadConceptCache(ctx, foo)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ir.CacheFull, rec.Status)
	assert.Equal(t, 1, rec.Count)
}
