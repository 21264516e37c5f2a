package updater

import (
	"context"

	"github.com/roach88/semstore/internal/annotator"
	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/eventbus"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/store"
)

// Outcome summarizes what an update did to the store.
type Outcome string

const (
	// OutcomeSkipped: the subject cannot hold content.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRestricted: a protection-only update, property tables untouched.
	OutcomeRestricted Outcome = "restricted"
	// OutcomeWritten: the stored facts changed.
	OutcomeWritten Outcome = "written"
	// OutcomeRedirected: references were retargeted and the redirect stored.
	OutcomeRedirected Outcome = "redirected"
	// OutcomeCleared: a subject without semantic data lost its stored facts.
	OutcomeCleared Outcome = "cleared"
	// OutcomeNoop: nothing to change.
	OutcomeNoop Outcome = "noop"
)

// UpdateOptions are the per-call flags of Update.
type UpdateOptions struct {
	// UpdateJobs overrides Config.EnableUpdateJobs when set.
	UpdateJobs *bool
	// ChangeProp marks an update that was itself scheduled by propagation.
	ChangeProp bool
	// CommandLineMode marks a batch run rather than an interactive edit.
	CommandLineMode bool
}

// Result reports the work done by one Update call.
type Result struct {
	Subject    ir.Subject          `json:"subject"`
	Outcome    Outcome             `json:"outcome"`
	Semantic   bool                `json:"semantic"`
	Propagated bool                `json:"propagated"`
	Target     *ir.Subject         `json:"redirect_target,omitempty"`
	Retarget   store.RetargetStats `json:"retarget"`
	Write      store.WriteStats    `json:"write"`
}

// Update stores data as the complete set of facts of its subject.
//
// Invalid subjects and subjects in namespaces that cannot hold content
// are skipped without error. Storage failures are returned; steps that
// already committed stay committed and re-running the update is safe.
func (u *Updater) Update(ctx context.Context, data *ir.SemanticData, opts UpdateOptions) (Result, error) {
	if data == nil {
		return Result{Outcome: OutcomeSkipped}, nil
	}
	subj := data.Subject()
	res := Result{Subject: subj}
	if !subj.IsValid() || !subj.Namespace.CanHoldContent() {
		u.logger.Debugw("update skipped", "subject", subj.Key(), "namespace", int(subj.Namespace))
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	unlock := u.locks.lock(subj.Key())
	defer unlock()

	jobs := u.cfg.EnableUpdateJobs
	if opts.UpdateJobs != nil {
		jobs = *opts.UpdateJobs
	}

	data, semantic, err := u.prepare(ctx, data)
	if err != nil {
		return res, err
	}
	res.Semantic = semantic

	prev := &storedData{store: u.store, subject: subj}

	restricted, err := u.isRestricted(ctx, data, prev)
	if err != nil {
		return res, err
	}
	if restricted {
		res.Outcome = OutcomeRestricted
		u.logDone(res, opts)
		return res, nil
	}

	// The previous declarations are gone once the write below runs.
	if subj.Namespace == ir.NSProperty && jobs && !opts.ChangeProp && u.notifier != nil {
		stored, err := prev.get(ctx)
		if err != nil {
			return res, err
		}
		res.Propagated, err = u.notifier.CheckAndNotify(ctx, stored, data, opts.ChangeProp)
		if err != nil {
			return res, errors.Wrapf(err, "change propagation for %s", subj)
		}
	}

	if jobs {
		if target, ok := redirectTarget(data); ok {
			res, err = u.redirect(ctx, subj, target, res)
			if err == nil {
				u.logDone(res, opts)
			}
			return res, err
		}
	}

	res, err = u.write(ctx, data, semantic, res)
	if err == nil {
		u.logDone(res, opts)
	}
	return res, err
}

// prepare applies the namespace and page-existence checks and the
// predefined annotations. It reports whether semantic processing applies.
func (u *Updater) prepare(ctx context.Context, data *ir.SemanticData) (*ir.SemanticData, bool, error) {
	subj := data.Subject()
	if !u.IsSemanticEnabled(subj.Namespace) {
		return ir.NewSemanticData(subj), false, nil
	}

	info, found := annotator.PageInfo{}, true
	if u.pages != nil {
		var err error
		info, found, err = u.pages.PageInfo(ctx, subj)
		if err != nil {
			return nil, false, errors.Wrapf(err, "page info for %s", subj)
		}
	}
	if !found {
		return ir.NewSemanticData(subj), false, nil
	}

	if u.annotator != nil {
		data = annotator.Apply(data, u.annotator.Annotate(subj, info))
	}
	return data, true, nil
}

// isRestricted asks the edit-protection collaborator and then confirms
// that the update changes nothing but the protection property and the
// annotations added for the page edit itself.
func (u *Updater) isRestricted(ctx context.Context, data *ir.SemanticData, prev *storedData) (bool, error) {
	if u.protection == nil {
		return false, nil
	}
	restricted, err := u.protection.IsRestrictedUpdate(ctx, data)
	if err != nil {
		return false, errors.Wrapf(err, "edit protection for %s", data.Subject())
	}
	if !restricted {
		return false, nil
	}

	stored, err := prev.get(ctx)
	if err != nil {
		return false, err
	}
	ignored := append([]string{ir.PropEditProtection}, annotator.Supported...)
	if !stored.Without(ignored...).Equal(data.Without(ignored...)) {
		u.logger.Warnw("restricted update also changes content, writing normally",
			"subject", data.Subject().Key())
		return false, nil
	}
	return true, nil
}

// redirectTarget returns the last redirect value of data when it points
// at another subject.
func redirectTarget(data *ir.SemanticData) (ir.Subject, bool) {
	values := data.Values(ir.NewProperty(ir.PropRedirect))
	if len(values) == 0 {
		return ir.Subject{}, false
	}
	page, ok := values[len(values)-1].(ir.Page)
	if !ok || !page.Subject.IsValid() || page.Subject.Equal(data.Subject()) {
		return ir.Subject{}, false
	}
	return page.Subject, true
}

// redirect keeps only the redirect assertion, moves references from
// the source to the target and then writes the redirect.
func (u *Updater) redirect(ctx context.Context, subj, target ir.Subject, res Result) (Result, error) {
	minimal := ir.NewSemanticData(subj)
	minimal.Add(ir.NewProperty(ir.PropRedirect), ir.NewPage(target))

	rs, err := u.store.Retarget(ctx, subj, target)
	if err != nil {
		return res, errors.Wrapf(err, "retarget %s to %s", subj, target)
	}
	res.Retarget = rs
	res.Target = &target

	if u.bus != nil {
		if err := u.bus.Publish(ctx, eventbus.DisplayCacheInvalidate, subj); err != nil {
			u.logger.Warnw("display cache invalidation failed", "subject", subj.Key(), "error", err)
		}
	}

	stats, err := u.store.UpdateData(ctx, minimal)
	if err != nil {
		return res, err
	}
	res.Write = stats
	res.Outcome = OutcomeRedirected
	return res, nil
}

// write upserts semantic data, or clears a subject that had facts
// before. A subject that never had facts is left without a fingerprint.
func (u *Updater) write(ctx context.Context, data *ir.SemanticData, semantic bool, res Result) (Result, error) {
	subj := data.Subject()
	if semantic {
		stats, err := u.store.UpdateData(ctx, data)
		if err != nil {
			return res, err
		}
		res.Write = stats
		res.Outcome = OutcomeWritten
		if !stats.Changed() {
			res.Outcome = OutcomeNoop
		}
		return res, nil
	}

	exists, err := u.store.Exists(ctx, subj)
	if err != nil {
		return res, err
	}
	if !exists {
		res.Outcome = OutcomeNoop
		return res, nil
	}
	stats, err := u.store.ClearData(ctx, subj)
	if err != nil {
		return res, err
	}
	res.Write = stats
	res.Outcome = OutcomeCleared
	return res, nil
}

func (u *Updater) logDone(res Result, opts UpdateOptions) {
	log := u.logger.Infow
	if opts.CommandLineMode {
		log = u.logger.Debugw
	}
	log("update",
		"subject", res.Subject.Key(),
		"outcome", string(res.Outcome),
		"semantic", res.Semantic,
		"propagated", res.Propagated,
		"tables_changed", res.Write.TablesChanged)
}

// storedData loads the stored facts of a subject at most once.
type storedData struct {
	store   Store
	subject ir.Subject
	data    *ir.SemanticData
}

func (s *storedData) get(ctx context.Context) (*ir.SemanticData, error) {
	if s.data != nil {
		return s.data, nil
	}
	data, err := s.store.ReadSemanticData(ctx, s.subject)
	if err != nil {
		return nil, errors.Wrapf(err, "read stored data for %s", s.subject)
	}
	s.data = data
	return data, nil
}
