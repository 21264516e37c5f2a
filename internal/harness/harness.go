package harness

import (
	"bytes"
	"context"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/annotator"
	"github.com/roach88/semstore/internal/conceptcache"
	"github.com/roach88/semstore/internal/config"
	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/eventbus"
	"github.com/roach88/semstore/internal/factfile"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/jobs"
	"github.com/roach88/semstore/internal/lang"
	"github.com/roach88/semstore/internal/propagation"
	"github.com/roach88/semstore/internal/store"
	"github.com/roach88/semstore/internal/testutil"
	"github.com/roach88/semstore/internal/updater"
)

// Harness is the scenario execution engine. It owns one database and
// the components wired over it.
type Harness struct {
	store   *store.Store
	queue   *jobs.Queue
	updater *updater.Updater
	pages   *factfile.Pages
	bus     *eventbus.Recorder
	clock   *testutil.Clock
	lang    *lang.Table
	limits  conceptcache.Limits
	logger  *zap.SugaredLogger
}

// Run executes a scenario against a fresh database at dbPath and returns
// the snapshot of its steps and final state.
//
// Execution flow:
// 1. Resolve settings from the defaults and the scenario config
// 2. Open the store and job queue on a fake clock
// 3. Execute the steps in order, stopping at the first error
// 4. Capture the final state
func Run(ctx context.Context, scenario *Scenario, dbPath string) (*Snapshot, error) {
	settings, err := scenario.Config.settings()
	if err != nil {
		return nil, errors.Wrap(err, "invalid scenario config")
	}

	clock := testutil.NewClock(testutil.Epoch)
	st, err := store.Open(dbPath,
		store.WithIDRetention(settings.IDRetention()),
		store.WithClock(clock.Now))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	queue, err := jobs.NewQueue(ctx, st.DB(), jobs.WithClock(clock.Now))
	if err != nil {
		return nil, err
	}

	table := settings.LanguageTable()
	pages, err := factfile.NewPages(table, nil)
	if err != nil {
		return nil, err
	}
	bus := &eventbus.Recorder{}
	notifier := propagation.New(settings.DeclarationProperties(), st, queue)

	h := &Harness{
		store: st,
		queue: queue,
		updater: updater.New(st, notifier, settings.UpdaterConfig(),
			updater.WithPageInfo(pages),
			updater.WithEditProtection(pages),
			updater.WithAnnotator(annotator.New(settings.Updates.PageSpecialProperties)),
			updater.WithBus(bus)),
		pages:  pages,
		bus:    bus,
		clock:  clock,
		lang:   table,
		limits: settings.QueryLimits(),
		logger: zap.NewNop().Sugar(), // Suppress logs in tests
	}

	snap := &Snapshot{Scenario: scenario.Name, Steps: []StepResult{}}
	for i, step := range scenario.Steps {
		res, err := h.runStep(ctx, step)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", i+1, step.Kind())
		}
		res.Step = i + 1
		snap.Steps = append(snap.Steps, res)
	}

	if err := h.capture(ctx, snap); err != nil {
		return nil, errors.Wrap(err, "failed to capture state")
	}
	return snap, nil
}

// settings applies the scenario overrides to the built-in defaults.
// Environment variables are not consulted.
func (c Config) settings() (config.Settings, error) {
	v := viper.New()
	config.SetDefaults(v)
	if c.EnableUpdateJobs != nil {
		v.Set("updates.enable_update_jobs", *c.EnableUpdateJobs)
	}
	if c.IDRetention != "" {
		v.Set("store.id_retention", c.IDRetention)
	}
	if c.Language != "" {
		v.Set("language", c.Language)
	}
	if c.MaxSize != nil {
		v.Set("query.max_size", *c.MaxSize)
	}
	if c.MaxDepth != nil {
		v.Set("query.max_depth", *c.MaxDepth)
	}
	return config.FromViper(v)
}

func (h *Harness) runStep(ctx context.Context, step Step) (StepResult, error) {
	switch step.Kind() {
	case StepUpdate:
		return h.update(ctx, step)
	case StepDelete:
		return h.delete(ctx, step.Delete)
	case StepConcepts:
		return h.concepts(ctx, *step.Concepts)
	case StepAdvance:
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return StepResult{}, err
		}
		now := h.clock.Advance(d)
		return StepResult{Op: StepAdvance, Now: now.Format(time.RFC3339)}, nil
	default:
		return StepResult{}, errors.New("step sets no operation")
	}
}

func (h *Harness) update(ctx context.Context, step Step) (StepResult, error) {
	doc := *step.Update
	if err := h.pages.Put(h.lang, doc); err != nil {
		return StepResult{}, err
	}
	data, err := doc.SemanticData(h.lang)
	if err != nil {
		return StepResult{}, err
	}

	res, err := h.updater.Update(ctx, data, updater.UpdateOptions{
		UpdateJobs: step.UpdateJobs,
		ChangeProp: step.ChangeProp,
	})
	if err != nil {
		return StepResult{}, err
	}

	out := StepResult{
		Op:         StepUpdate,
		Subject:    data.Subject().Key(),
		Outcome:    string(res.Outcome),
		Propagated: res.Propagated,
		RowsMoved:  res.Retarget.RowsMoved,
	}
	if res.Target != nil {
		out.Target = res.Target.Key()
	}
	return out, nil
}

func (h *Harness) delete(ctx context.Context, text string) (StepResult, error) {
	subj, err := h.lang.ParseSubject(text, ir.NSMain)
	if err != nil {
		return StepResult{}, err
	}
	stats, err := h.store.DeleteSubject(ctx, subj)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{
		Op:          StepDelete,
		Subject:     subj.Key(),
		RowsDeleted: stats.RowsDeleted,
		IDsFreed:    stats.IDsFreed,
	}, nil
}

func (h *Harness) concepts(ctx context.Context, step ConceptStep) (StepResult, error) {
	action, err := conceptcache.ParseAction(step.Action)
	if err != nil {
		return StepResult{}, err
	}
	opts := conceptcache.Options{
		Action:     action,
		StartID:    step.Start,
		EndID:      step.End,
		UpdateOnly: step.UpdateOnly,
		OldOnly:    step.OldMinutes > 0,
		OldMinutes: step.OldMinutes,
		HardOnly:   step.HardOnly,
		Verbose:    step.Verbose,
	}
	if step.Concept != "" {
		subj, err := h.lang.ParseSubject(step.Concept, ir.NSConcept)
		if err != nil {
			return StepResult{}, err
		}
		opts.Concept = &subj
	}

	var buf bytes.Buffer
	rebuilder := conceptcache.New(h.store, h.limits,
		conceptcache.WithReporter(conceptcache.NewWriterReporter(&buf, opts.OutputLevel())),
		conceptcache.WithClock(h.clock.Now),
		conceptcache.WithDelay(0),
		conceptcache.WithLanguage(h.lang),
		conceptcache.WithLogger(h.logger))

	sum, err := rebuilder.Rebuild(ctx, opts)
	if err != nil {
		return StepResult{}, err
	}

	res := StepResult{
		Op:     StepConcepts,
		Output: buf.String(),
		Summary: &ConceptSummary{
			Action:     string(sum.Action),
			Considered: sum.Considered,
			Processed:  sum.Processed,
		},
	}
	if len(sum.Skipped) > 0 {
		res.Summary.Skipped = map[string]int{}
		for reason, n := range sum.Skipped {
			res.Summary.Skipped[reason.String()] = n
		}
	}
	return res, nil
}
