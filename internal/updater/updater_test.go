package updater

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semstore/internal/annotator"
	"github.com/roach88/semstore/internal/eventbus"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/jobs"
	"github.com/roach88/semstore/internal/propagation"
	"github.com/roach88/semstore/internal/store"
)

// ============================================================
// Fixtures
// ============================================================

type fixture struct {
	store   *store.Store
	queue   *jobs.Queue
	bus     *eventbus.Recorder
	updater *Updater
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	q, err := jobs.NewQueue(ctx, s.DB())
	require.NoError(t, err)

	bus := &eventbus.Recorder{}
	notifier := propagation.New(nil, s, q)
	opts = append([]Option{WithBus(bus)}, opts...)
	u := New(s, notifier, Config{EnableUpdateJobs: true}, opts...)
	return &fixture{store: s, queue: q, bus: bus, updater: u}
}

func facts(subj ir.Subject, kv map[string][]ir.DataItem) *ir.SemanticData {
	d := ir.NewSemanticData(subj)
	for key, vs := range kv {
		for _, v := range vs {
			d.Add(ir.NewProperty(key), v)
		}
	}
	return d
}

func mainPage(title string) ir.Subject { return ir.NewSubject(title, ir.NSMain) }

func (f *fixture) read(t *testing.T, subj ir.Subject) *ir.SemanticData {
	t.Helper()
	d, err := f.store.ReadSemanticData(context.Background(), subj)
	require.NoError(t, err)
	return d
}

func (f *fixture) queued(t *testing.T) []string {
	t.Helper()
	status := jobs.StatusQueued
	list, err := f.queue.List(context.Background(), &status, 0)
	require.NoError(t, err)
	titles := []string{}
	for _, j := range list {
		titles = append(titles, j.Subject.Title)
	}
	return titles
}

func boolPtr(b bool) *bool { return &b }

// ============================================================
// Rejection and namespace handling
// ============================================================

func TestUpdate_SkipsSubjectsWithoutContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, subj := range []ir.Subject{
		ir.NewSubject("Search", ir.NSSpecial),
		{Namespace: ir.NSMain},
	} {
		res, err := f.updater.Update(ctx, facts(subj, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}), UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
	}

	res, err := f.updater.Update(ctx, nil, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}

func TestUpdate_NonSemanticNamespaceLeavesNoFingerprint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	talk := ir.NewSubject("Berlin", ir.NSTalk)

	res, err := f.updater.Update(ctx, facts(talk, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.False(t, res.Semantic)

	exists, err := f.store.Exists(ctx, talk)
	require.NoError(t, err)
	assert.False(t, exists)
	_, ok, err := f.store.Resolve(ctx, talk, false)
	require.NoError(t, err)
	assert.False(t, ok, "no ID allocated for a subject that never had data")
}

func TestUpdate_ClearsSubjectThatHadData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	talk := ir.NewSubject("Berlin", ir.NSTalk)

	_, err := f.store.UpdateData(ctx, facts(talk, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	require.NoError(t, err)

	res, err := f.updater.Update(ctx, facts(talk, map[string][]ir.DataItem{"Color": {ir.Blob("blue")}}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCleared, res.Outcome)
	assert.True(t, f.read(t, talk).IsEmpty())

	exists, err := f.store.Exists(ctx, talk)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdate_MissingPageIsCleared(t *testing.T) {
	pages := pageInfoFunc(func(ir.Subject) (annotator.PageInfo, bool) { return annotator.PageInfo{}, false })
	f := newFixture(t, WithPageInfo(pages))
	ctx := context.Background()
	subj := mainPage("Gone")

	_, err := f.store.UpdateData(ctx, facts(subj, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	require.NoError(t, err)

	res, err := f.updater.Update(ctx, facts(subj, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCleared, res.Outcome)
}

func TestIsSemanticEnabled_Config(t *testing.T) {
	u := New(nil, nil, Config{SemanticNamespaces: map[ir.Namespace]bool{ir.NSTalk: true}})
	assert.True(t, u.IsSemanticEnabled(ir.NSTalk))
	assert.False(t, u.IsSemanticEnabled(ir.NSMain))

	d := New(nil, nil, Config{})
	assert.True(t, d.IsSemanticEnabled(ir.NSMain))
	assert.True(t, d.IsSemanticEnabled(ir.NSConcept))
	assert.False(t, d.IsSemanticEnabled(ir.NSTalk))
}

// ============================================================
// Generic write
// ============================================================

func TestUpdate_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	subj := mainPage("Berlin")
	data := facts(subj, map[string][]ir.DataItem{
		"Population": {ir.Number(3_600_000)},
		"Located in": {ir.NewPage(mainPage("Germany"))},
	})

	first, err := f.updater.Update(ctx, data, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, first.Outcome)
	fp1, err := f.store.Fingerprint(ctx, subj)
	require.NoError(t, err)

	second, err := f.updater.Update(ctx, data.Clone(), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, second.Outcome)
	assert.Zero(t, second.Write.RowsInserted)
	assert.Zero(t, second.Write.RowsDeleted)

	fp2, err := f.store.Fingerprint(ctx, subj)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	assert.True(t, data.Equal(f.read(t, subj)))
}

func TestUpdate_AppliesAnnotations(t *testing.T) {
	modified := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pages := pageInfoFunc(func(ir.Subject) (annotator.PageInfo, bool) {
		return annotator.PageInfo{Modified: modified, LastEditor: "Alice"}, true
	})
	f := newFixture(t,
		WithPageInfo(pages),
		WithAnnotator(annotator.New([]string{ir.PropModificationDate, ir.PropLastEditor})))
	ctx := context.Background()
	subj := mainPage("Berlin")

	stale := ir.NewTime(time.Unix(0, 0))
	_, err := f.updater.Update(ctx, facts(subj, map[string][]ir.DataItem{
		"Color":                 {ir.Blob("red")},
		ir.PropModificationDate: {stale},
	}), UpdateOptions{})
	require.NoError(t, err)

	stored := f.read(t, subj)
	assert.Equal(t, []ir.DataItem{ir.NewTime(modified)}, stored.Values(ir.NewProperty(ir.PropModificationDate)))
	assert.Equal(t, []ir.DataItem{ir.NewPage(ir.NewSubject("Alice", ir.NSUser))}, stored.Values(ir.NewProperty(ir.PropLastEditor)))
	assert.Equal(t, []ir.DataItem{ir.Blob("red")}, stored.Values(ir.NewProperty("Color")))
}

// ============================================================
// Restricted updates
// ============================================================

func TestUpdate_RestrictedProtectionOnlyChange(t *testing.T) {
	f := newFixture(t, WithEditProtection(protectionFunc(func(*ir.SemanticData) bool { return true })))
	ctx := context.Background()
	subj := mainPage("Berlin")

	base := facts(subj, map[string][]ir.DataItem{"Color": {ir.Blob("red")}})
	_, err := f.store.UpdateData(ctx, base)
	require.NoError(t, err)

	incoming := base.Clone()
	incoming.Add(ir.NewProperty(ir.PropEditProtection), ir.Blob("sysop"))
	res, err := f.updater.Update(ctx, incoming, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestricted, res.Outcome)
	assert.True(t, base.Equal(f.read(t, subj)), "property tables untouched")
}

func TestUpdate_RestrictedRefusedWhenContentChanges(t *testing.T) {
	f := newFixture(t, WithEditProtection(protectionFunc(func(*ir.SemanticData) bool { return true })))
	ctx := context.Background()
	subj := mainPage("Berlin")

	_, err := f.store.UpdateData(ctx, facts(subj, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}))
	require.NoError(t, err)

	incoming := facts(subj, map[string][]ir.DataItem{
		"Color":               {ir.Blob("blue")},
		ir.PropEditProtection: {ir.Blob("sysop")},
	})
	res, err := f.updater.Update(ctx, incoming, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, res.Outcome)
	assert.True(t, incoming.Equal(f.read(t, subj)))
}

func TestUpdate_RestrictedIgnoresEditAnnotations(t *testing.T) {
	info := annotator.PageInfo{Modified: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), LastEditor: "Alice"}
	pages := pageInfoFunc(func(ir.Subject) (annotator.PageInfo, bool) { return info, true })
	protected := protectionFunc(func(d *ir.SemanticData) bool {
		return d.Has(ir.NewProperty(ir.PropEditProtection))
	})
	f := newFixture(t,
		WithPageInfo(pages),
		WithAnnotator(annotator.New(annotator.Supported)),
		WithEditProtection(protected))
	ctx := context.Background()
	subj := mainPage("Berlin")

	res, err := f.updater.Update(ctx, facts(subj, map[string][]ir.DataItem{"Color": {ir.Blob("red")}}), UpdateOptions{})
	require.NoError(t, err)
	require.Equal(t, OutcomeWritten, res.Outcome)
	before := f.read(t, subj)

	// Protecting the page is itself an edit with a new date and editor.
	info = annotator.PageInfo{Modified: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC), LastEditor: "Bob"}
	res, err = f.updater.Update(ctx, facts(subj, map[string][]ir.DataItem{
		"Color":               {ir.Blob("red")},
		ir.PropEditProtection: {ir.Blob("sysop")},
	}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestricted, res.Outcome)
	assert.True(t, before.Equal(f.read(t, subj)), "property tables untouched")
}

func TestUpdate_ProtectionFailure(t *testing.T) {
	boom := stderrors.New("protection lookup failed")
	f := newFixture(t, WithEditProtection(failingProtection{err: boom}))

	_, err := f.updater.Update(context.Background(), facts(mainPage("A"), nil), UpdateOptions{})
	assert.ErrorIs(t, err, boom)
}

// ============================================================
// Change propagation
// ============================================================

func seedAge(t *testing.T, f *fixture) ir.Subject {
	t.Helper()
	ctx := context.Background()
	age := ir.NewSubject("Age", ir.NSProperty)
	_, err := f.store.UpdateData(ctx, facts(age, map[string][]ir.DataItem{ir.PropType: {ir.Blob("_num")}}))
	require.NoError(t, err)
	for title, years := range map[string]float64{"Alice": 30, "Bob": 40} {
		_, err := f.store.UpdateData(ctx, facts(mainPage(title), map[string][]ir.DataItem{"Age": {ir.Number(years)}}))
		require.NoError(t, err)
	}
	_, err = f.store.UpdateData(ctx, facts(mainPage("Carol"), map[string][]ir.DataItem{"Height": {ir.Number(170)}}))
	require.NoError(t, err)
	return age
}

func TestUpdate_TypeChangeSchedulesDependents(t *testing.T) {
	f := newFixture(t)
	age := seedAge(t, f)

	res, err := f.updater.Update(context.Background(), facts(age, map[string][]ir.DataItem{
		ir.PropType: {ir.Blob("_txt")},
		"Note":      {ir.Blob("free text now")},
	}), UpdateOptions{})
	require.NoError(t, err)
	assert.True(t, res.Propagated)
	assert.Equal(t, OutcomeWritten, res.Outcome)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, f.queued(t))
}

func TestUpdate_UnchangedDeclarationSchedulesNothing(t *testing.T) {
	f := newFixture(t)
	age := seedAge(t, f)

	res, err := f.updater.Update(context.Background(), facts(age, map[string][]ir.DataItem{
		ir.PropType: {ir.Blob("_num")},
		"Note":      {ir.Blob("only the note changed")},
	}), UpdateOptions{})
	require.NoError(t, err)
	assert.False(t, res.Propagated)
	assert.Empty(t, f.queued(t))
}

func TestUpdate_PropagationGuards(t *testing.T) {
	changed := func(age ir.Subject) *ir.SemanticData {
		return facts(age, map[string][]ir.DataItem{ir.PropType: {ir.Blob("_txt")}})
	}

	t.Run("triggered by propagation", func(t *testing.T) {
		f := newFixture(t)
		age := seedAge(t, f)
		res, err := f.updater.Update(context.Background(), changed(age), UpdateOptions{ChangeProp: true})
		require.NoError(t, err)
		assert.False(t, res.Propagated)
		assert.Empty(t, f.queued(t))
	})

	t.Run("update jobs disabled", func(t *testing.T) {
		f := newFixture(t)
		age := seedAge(t, f)
		res, err := f.updater.Update(context.Background(), changed(age), UpdateOptions{UpdateJobs: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, res.Propagated)
		assert.Empty(t, f.queued(t))
	})
}

func TestUpdate_PropagationComparesBeforeWrite(t *testing.T) {
	f := newFixture(t)
	age := seedAge(t, f)
	rec := &recordingStore{Store: f.store}
	notifier := &recordingNotifier{calls: &rec.calls}
	u := New(rec, notifier, Config{EnableUpdateJobs: true})

	_, err := u.Update(context.Background(), facts(age, map[string][]ir.DataItem{ir.PropType: {ir.Blob("_txt")}}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "notify", "update"}, rec.calls)
	require.NotNil(t, notifier.stored)
	assert.Equal(t, []ir.DataItem{ir.Blob("_num")}, notifier.stored.Values(ir.NewProperty(ir.PropType)))
}

// ============================================================
// Redirects
// ============================================================

func TestUpdate_RedirectKeepsOnlyRedirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := mainPage("A"), mainPage("B")

	_, err := f.store.UpdateData(ctx, facts(mainPage("C"), map[string][]ir.DataItem{"Links to": {ir.NewPage(a)}}))
	require.NoError(t, err)

	res, err := f.updater.Update(ctx, facts(a, map[string][]ir.DataItem{
		ir.PropRedirect: {ir.NewPage(b)},
		"Color":         {ir.Blob("red")},
	}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirected, res.Outcome)
	require.NotNil(t, res.Target)
	assert.True(t, b.Equal(*res.Target))
	assert.Equal(t, int64(1), res.Retarget.RowsMoved)

	want := facts(a, map[string][]ir.DataItem{ir.PropRedirect: {ir.NewPage(b)}})
	assert.True(t, want.Equal(f.read(t, a)))
	assert.Equal(t, []ir.DataItem{ir.NewPage(b)}, f.read(t, mainPage("C")).Values(ir.NewProperty("Links to")))

	assert.Equal(t, []eventbus.Event{{Name: eventbus.DisplayCacheInvalidate, Subject: a}}, f.bus.Events())
}

func TestUpdate_RedirectOrdering(t *testing.T) {
	f := newFixture(t)
	rec := &recordingStore{Store: f.store}
	bus := &orderedBus{calls: &rec.calls}
	u := New(rec, nil, Config{EnableUpdateJobs: true}, WithBus(bus))

	_, err := u.Update(context.Background(), facts(mainPage("A"), map[string][]ir.DataItem{
		ir.PropRedirect: {ir.NewPage(mainPage("B"))},
	}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"retarget", "publish", "update"}, rec.calls)
}

func TestUpdate_RedirectNeedsUpdateJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := mainPage("A")
	data := facts(a, map[string][]ir.DataItem{
		ir.PropRedirect: {ir.NewPage(mainPage("B"))},
		"Color":         {ir.Blob("red")},
	})

	res, err := f.updater.Update(ctx, data, UpdateOptions{UpdateJobs: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, res.Outcome)
	assert.True(t, data.Equal(f.read(t, a)))
	assert.Empty(t, f.bus.Events())
}

func TestUpdate_RedirectToSelfIsGenericWrite(t *testing.T) {
	f := newFixture(t)
	a := mainPage("A")
	res, err := f.updater.Update(context.Background(), facts(a, map[string][]ir.DataItem{
		ir.PropRedirect: {ir.NewPage(a)},
	}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, res.Outcome)
	assert.Empty(t, f.bus.Events())
}

func TestUpdate_BusFailureDoesNotAbortRedirect(t *testing.T) {
	f := newFixture(t)
	u := New(f.store, nil, Config{EnableUpdateJobs: true}, WithBus(failingBus{}))
	a := mainPage("A")

	res, err := u.Update(context.Background(), facts(a, map[string][]ir.DataItem{
		ir.PropRedirect: {ir.NewPage(mainPage("B"))},
	}), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirected, res.Outcome)
	assert.Equal(t, 1, f.read(t, a).Len())
}

// ============================================================
// Serialization
// ============================================================

func TestSubjectLocks(t *testing.T) {
	locks := newSubjectLocks()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("A#0##")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, locks.size())
}

func TestUpdate_ConcurrentSameSubject(t *testing.T) {
	f := newFixture(t)
	subj := mainPage("Berlin")
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.updater.Update(context.Background(), facts(subj, map[string][]ir.DataItem{
				"Count": {ir.Number(float64(n))},
			}), UpdateOptions{})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.read(t, subj).Len())
}

// ============================================================
// Test doubles
// ============================================================

type pageInfoFunc func(ir.Subject) (annotator.PageInfo, bool)

func (f pageInfoFunc) PageInfo(_ context.Context, s ir.Subject) (annotator.PageInfo, bool, error) {
	info, ok := f(s)
	return info, ok, nil
}

type protectionFunc func(*ir.SemanticData) bool

func (f protectionFunc) IsRestrictedUpdate(_ context.Context, d *ir.SemanticData) (bool, error) {
	return f(d), nil
}

type failingProtection struct{ err error }

func (f failingProtection) IsRestrictedUpdate(context.Context, *ir.SemanticData) (bool, error) {
	return false, f.err
}

type failingBus struct{}

func (failingBus) Publish(context.Context, string, ir.Subject) error {
	return stderrors.New("bus down")
}

// recordingStore records the order of store calls.
type recordingStore struct {
	*store.Store
	calls []string
}

func (r *recordingStore) ReadSemanticData(ctx context.Context, s ir.Subject) (*ir.SemanticData, error) {
	r.calls = append(r.calls, "read")
	return r.Store.ReadSemanticData(ctx, s)
}

func (r *recordingStore) UpdateData(ctx context.Context, d *ir.SemanticData) (store.WriteStats, error) {
	r.calls = append(r.calls, "update")
	return r.Store.UpdateData(ctx, d)
}

func (r *recordingStore) Retarget(ctx context.Context, source, target ir.Subject) (store.RetargetStats, error) {
	r.calls = append(r.calls, "retarget")
	return r.Store.Retarget(ctx, source, target)
}

type recordingNotifier struct {
	calls  *[]string
	stored *ir.SemanticData
}

func (n *recordingNotifier) CheckAndNotify(_ context.Context, stored, _ *ir.SemanticData, _ bool) (bool, error) {
	*n.calls = append(*n.calls, "notify")
	n.stored = stored
	return true, nil
}

type orderedBus struct{ calls *[]string }

func (b *orderedBus) Publish(context.Context, string, ir.Subject) error {
	*b.calls = append(*b.calls, "publish")
	return nil
}
