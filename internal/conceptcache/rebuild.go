// Package conceptcache maintains the materialized result sets of
// concepts: it reports their status, rebuilds them, or purges them.
//
// A run works concept by concept. A failure stops the run but leaves the
// concepts already handled in their new state, so re-running is safe.
package conceptcache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/lang"
	"github.com/roach88/semstore/internal/logger"
	"github.com/roach88/semstore/internal/store"
)

// Action selects what a run does to each concept.
type Action string

const (
	ActionStatus Action = "status"
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

// ParseAction validates an action name.
func ParseAction(name string) (Action, error) {
	switch a := Action(name); a {
	case ActionStatus, ActionCreate, ActionDelete:
		return a, nil
	}
	return "", errors.Newf("unknown concept cache action %q", name)
}

// DefaultDelay is the cancellation window before destructive runs.
const DefaultDelay = 5 * time.Second

// Store is the subset of the fact store the rebuilder uses.
type Store interface {
	ReadConceptCache(ctx context.Context, concept ir.Subject) (*ir.CacheRecord, error)
	RefreshConceptCache(ctx context.Context, concept ir.Subject) (ir.CacheRecord, error)
	DeleteConceptCache(ctx context.Context, concept ir.Subject) error
	ListSubjectsInNamespace(ctx context.Context, ns ir.Namespace) ([]store.PageRef, error)
	ListSubjectsInIDRange(ctx context.Context, ns ir.Namespace, lo, hi int64) ([]store.PageRef, error)
	MaxIDInNamespace(ctx context.Context, ns ir.Namespace) (int64, error)
}

// Options are the parameters of one run.
type Options struct {
	Action Action
	// Concept restricts the run to one concept.
	Concept *ir.Subject
	// StartID and EndID select concepts by ID when Concept is nil. Both 0
	// means every concept; EndID 0 means up to the highest concept ID.
	StartID int64
	EndID   int64

	UpdateOnly bool
	OldOnly    bool
	OldMinutes int
	HardOnly   bool

	Quiet   bool
	Verbose bool
}

// OutputLevel is the reporter verbosity implied by Quiet and Verbose.
func (o Options) OutputLevel() Level {
	switch {
	case o.Quiet:
		return LevelQuiet
	case o.Verbose:
		return LevelVerbose
	}
	return LevelNormal
}

// Summary counts what a run did.
type Summary struct {
	Action     Action             `json:"action"`
	Considered int                `json:"considered"`
	Processed  int                `json:"processed"`
	Skipped    map[SkipReason]int `json:"-"`
	// Lines is the running report line number.
	Lines int `json:"lines"`
}

// SkippedTotal is the number of concepts skipped for any reason.
func (s Summary) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// RunError is returned when a concept could not be handled. Partial is
// set when earlier concepts of the same run were already processed.
type RunError struct {
	Partial bool
	Concept ir.Subject
	Err     error
}

func (e *RunError) Error() string {
	if e.Concept.IsValid() {
		return fmt.Sprintf("concept %s: %v", e.Concept, e.Err)
	}
	return e.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Err }

// Rebuilder runs concept cache maintenance.
type Rebuilder struct {
	store   Store
	limits  Limits
	report  Reporter
	now     func() time.Time
	delay   time.Duration
	display func(ir.Subject) string
	logger  *zap.SugaredLogger
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithReporter sets the progress sink.
func WithReporter(r Reporter) Option {
	return func(b *Rebuilder) { b.report = r }
}

// WithClock sets the clock used for cache ages.
func WithClock(now func() time.Time) Option {
	return func(b *Rebuilder) { b.now = now }
}

// WithDelay sets the cancellation window.
func WithDelay(d time.Duration) Option {
	return func(b *Rebuilder) { b.delay = d }
}

// WithLanguage sets the table used to display concept titles.
func WithLanguage(t *lang.Table) Option {
	return func(b *Rebuilder) { b.display = t.PrefixedText }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(b *Rebuilder) { b.logger = logger.OrNop(l) }
}

// New creates a Rebuilder over st with the hard-filter limits.
func New(st Store, limits Limits, opts ...Option) *Rebuilder {
	b := &Rebuilder{
		store:   st,
		limits:  limits,
		report:  discard{},
		now:     time.Now,
		delay:   DefaultDelay,
		display: lang.MustLookup(lang.Default).PrefixedText,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Rebuild performs opts.Action on every selected concept.
func (b *Rebuilder) Rebuild(ctx context.Context, opts Options) (Summary, error) {
	sum := Summary{Action: opts.Action, Skipped: map[SkipReason]int{}}
	if _, err := ParseAction(string(opts.Action)); err != nil {
		return sum, err
	}

	if err := b.announce(ctx, opts); err != nil {
		return sum, &RunError{Err: err}
	}

	if opts.HardOnly {
		b.report.Write(fmt.Sprintf("Option 'hard' is parameterized by max_depth: %d max_size: %d features: %s\n\n",
			b.limits.MaxDepth, b.limits.MaxSize, b.limits.Features), LevelVerbose)
	}

	concepts, err := b.concepts(ctx, opts)
	if err != nil {
		return sum, &RunError{Err: err}
	}

	for _, concept := range concepts {
		if err := ctx.Err(); err != nil {
			return sum, &RunError{Partial: sum.Processed > 0, Concept: concept, Err: err}
		}
		if err := b.workOn(ctx, concept, opts, &sum); err != nil {
			return sum, &RunError{Partial: sum.Processed > 0, Concept: concept, Err: err}
		}
	}

	if len(concepts) == 0 {
		b.report.Write("No concept available.\n", LevelVerbose)
	}

	b.logger.Infow("concept cache run",
		"action", string(opts.Action),
		"considered", sum.Considered,
		"processed", sum.Processed,
		"skipped", sum.SkippedTotal())
	return sum, nil
}

// announce prints the run header and, for destructive runs that are not
// quiet, waits out the cancellation window.
func (b *Rebuilder) announce(ctx context.Context, opts Options) error {
	destructive := opts.Action == ActionDelete || opts.Action == ActionCreate
	if destructive && !opts.Quiet && b.delay > 0 {
		b.report.Write(fmt.Sprintf("\nAbort with CTRL-C in the next %d seconds ... ", int(b.delay.Seconds())), LevelNormal)
		if err := wait(ctx, b.delay); err != nil {
			b.report.Write("aborted.\n", LevelNormal)
			return err
		}
	}

	switch opts.Action {
	case ActionStatus:
		b.report.Write("\nDisplaying concept cache status information. Use CTRL-C to abort.\n\n", LevelNormal)
	case ActionCreate:
		b.report.Write("\nCreating/updating concept caches. Use CTRL-C to abort.\n\n", LevelNormal)
	case ActionDelete:
		b.report.Write("\nDeleting concept caches.\n\n", LevelNormal)
	}
	return nil
}

func (b *Rebuilder) concepts(ctx context.Context, opts Options) ([]ir.Subject, error) {
	if opts.Concept != nil {
		return []ir.Subject{*opts.Concept}, nil
	}

	var (
		refs []store.PageRef
		err  error
	)
	if opts.StartID == 0 && opts.EndID == 0 {
		refs, err = b.store.ListSubjectsInNamespace(ctx, ir.NSConcept)
	} else {
		var maxID int64
		maxID, err = b.store.MaxIDInNamespace(ctx, ir.NSConcept)
		if err != nil {
			return nil, err
		}
		lo, hi := ResolveRange(opts.StartID, opts.EndID, maxID)
		refs, err = b.store.ListSubjectsInIDRange(ctx, ir.NSConcept, lo, hi)
	}
	if err != nil {
		return nil, err
	}

	subjects := make([]ir.Subject, len(refs))
	for i, ref := range refs {
		subjects[i] = ref.Subject
	}
	return subjects, nil
}

func (b *Rebuilder) workOn(ctx context.Context, concept ir.Subject, opts Options, sum *Summary) error {
	sum.Considered++
	title := b.display(concept)

	rec, err := b.store.ReadConceptCache(ctx, concept)
	if err != nil {
		return err
	}

	if reason := EvaluateSkip(rec, opts, b.limits, b.now()); reason != SkipNone {
		sum.Skipped[reason]++
		b.report.Write(fmt.Sprintf("(%d) Skipping concept %q: %s\n", sum.Lines, title, reason.Message()), LevelVerbose)
		if opts.OutputLevel() >= LevelVerbose {
			sum.Lines++
		}
		return nil
	}

	prefix := fmt.Sprintf("(%d) ", sum.Lines)
	switch opts.Action {
	case ActionCreate:
		b.report.Write(prefix+fmt.Sprintf("Creating cache for %q ...\n", title), LevelNormal)
		fresh, err := b.store.RefreshConceptCache(ctx, concept)
		if errors.Is(err, store.ErrNotCachable) {
			sum.Skipped[SkipNotCachable]++
			b.report.Write(fmt.Sprintf("  %v\n", err), LevelNormal)
			sum.Lines++
			return nil
		}
		if err != nil {
			return err
		}
		b.report.Write(fmt.Sprintf("  %d elements in cache\n", fresh.Count), LevelVerbose)

	case ActionDelete:
		b.report.Write(prefix+fmt.Sprintf("Deleting cache for %q ...\n", title), LevelNormal)
		if err := b.store.DeleteConceptCache(ctx, concept); err != nil {
			return err
		}

	case ActionStatus:
		b.report.Write(prefix+fmt.Sprintf("Status of cache for %q: %s", title, b.status(*rec)), LevelNormal)
	}

	sum.Processed++
	sum.Lines++
	return nil
}

func (b *Rebuilder) status(rec ir.CacheRecord) string {
	if !rec.IsFull() {
		return "Not cached.\n"
	}
	minutes := int(rec.Age(b.now()) / time.Minute)
	return fmt.Sprintf("Cache created at %s (%d minutes old), %d elements in cache\n",
		rec.Date.UTC().Format(time.DateTime), minutes, rec.Count)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
