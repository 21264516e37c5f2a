// Package propagation detects declaration changes on property pages and
// schedules re-processing of the subjects that use the property.
//
// The notifier only schedules. It never re-processes dependents itself,
// and it does nothing when the update that invoked it was already
// triggered by propagation, so a change fans out exactly one level.
package propagation

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/logger"
)

// Dependents lists the subjects that hold values for a property.
type Dependents interface {
	SubjectsUsingProperty(ctx context.Context, p ir.Property) ([]ir.Subject, error)
}

// Scheduler queues subjects for re-processing.
type Scheduler interface {
	EnqueuePropagation(ctx context.Context, subjects []ir.Subject) (int, error)
}

// DefaultDeclarationProperties are the properties whose change alters how
// dependents' values are interpreted.
var DefaultDeclarationProperties = []ir.Property{
	ir.NewProperty(ir.PropType),
	ir.NewProperty(ir.PropAllowsValue),
	ir.NewProperty(ir.PropConversion),
	ir.NewProperty(ir.PropAllowsList),
}

// Notifier compares declaration values of a property page before and
// after an update.
type Notifier struct {
	declarations []ir.Property
	dependents   Dependents
	scheduler    Scheduler
	logger       *zap.SugaredLogger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(n *Notifier) { n.logger = logger.OrNop(l) }
}

// New creates a notifier watching the given declaration properties.
// A nil or empty list means DefaultDeclarationProperties.
func New(declarations []ir.Property, dependents Dependents, scheduler Scheduler, opts ...Option) *Notifier {
	if len(declarations) == 0 {
		declarations = DefaultDeclarationProperties
	}
	n := &Notifier{
		declarations: append([]ir.Property(nil), declarations...),
		dependents:   dependents,
		scheduler:    scheduler,
		logger:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Changes returns the declaration properties whose value sets differ
// between stored and incoming, in configuration order.
func (n *Notifier) Changes(stored, incoming *ir.SemanticData) []ir.Property {
	changed := []ir.Property{}
	for _, p := range n.declarations {
		if !ir.SameValueSet(values(stored, p), values(incoming, p)) {
			changed = append(changed, p)
		}
	}
	return changed
}

// CheckAndNotify schedules every subject using the property described by
// incoming when any declaration value changed. It reports whether the
// property was marked for propagation.
//
// It is inert when triggeredByPropagation is set or when incoming does
// not describe a property page.
func (n *Notifier) CheckAndNotify(ctx context.Context, stored, incoming *ir.SemanticData, triggeredByPropagation bool) (bool, error) {
	if triggeredByPropagation || incoming == nil {
		return false, nil
	}
	prop, ok := ir.PropertyFromSubject(incoming.Subject())
	if !ok {
		return false, nil
	}

	changed := n.Changes(stored, incoming)
	if len(changed) == 0 {
		return false, nil
	}

	dependents, err := n.dependents.SubjectsUsingProperty(ctx, prop)
	if err != nil {
		return true, errors.Wrapf(err, "list dependents of %s", prop)
	}
	if len(dependents) == 0 {
		n.logger.Debugw("declaration changed, no dependents", "property", prop.Key)
		return true, nil
	}

	queued, err := n.scheduler.EnqueuePropagation(ctx, dependents)
	if err != nil {
		return true, errors.Wrapf(err, "schedule propagation of %s", prop)
	}

	n.logger.Infow("scheduled propagation",
		"property", prop.Key,
		"changed", keys(changed),
		"dependents", len(dependents),
		"queued", queued)
	return true, nil
}

func values(d *ir.SemanticData, p ir.Property) []ir.DataItem {
	if d == nil {
		return nil
	}
	return d.Values(p)
}

func keys(props []ir.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Key
	}
	return out
}
