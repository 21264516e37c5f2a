// Package updater turns a freshly parsed assertion set for one subject
// into the matching store mutation.
//
// One Update call runs these steps in order:
//
//  1. reject subjects that cannot hold content
//  2. drop the data when the namespace is not semantic or the page is gone
//  3. add predefined annotations from page metadata
//  4. stop early for restricted (protection-only) updates
//  5. compare declarations of property pages before anything is written
//  6. handle redirects: minimal data, retarget, invalidate display caches
//  7. write the data, or clear a subject that previously had data
//
// Updates to the same subject are serialized within one Updater. Callers
// running several processes against one database must serialize updates
// for a subject themselves.
package updater

import (
	"context"
	"maps"

	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/annotator"
	"github.com/roach88/semstore/internal/eventbus"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/logger"
	"github.com/roach88/semstore/internal/store"
)

// Store is the subset of the fact store the updater writes through.
type Store interface {
	ReadSemanticData(ctx context.Context, subj ir.Subject) (*ir.SemanticData, error)
	Exists(ctx context.Context, subj ir.Subject) (bool, error)
	UpdateData(ctx context.Context, data *ir.SemanticData) (store.WriteStats, error)
	ClearData(ctx context.Context, subj ir.Subject) (store.WriteStats, error)
	Retarget(ctx context.Context, source, target ir.Subject) (store.RetargetStats, error)
}

// Notifier checks property pages for declaration changes.
type Notifier interface {
	CheckAndNotify(ctx context.Context, stored, incoming *ir.SemanticData, triggeredByPropagation bool) (bool, error)
}

// PageInfoProvider returns the revision metadata of a page. found is
// false when the page has no current revision (deleted or never saved).
type PageInfoProvider interface {
	PageInfo(ctx context.Context, subj ir.Subject) (info annotator.PageInfo, found bool, err error)
}

// Annotator derives predefined properties from page metadata.
type Annotator interface {
	Annotate(subject ir.Subject, info annotator.PageInfo) *ir.SemanticData
}

// EditProtection reports whether an update only changes protection
// metadata.
type EditProtection interface {
	IsRestrictedUpdate(ctx context.Context, data *ir.SemanticData) (bool, error)
}

// Config holds the settings the updater consults.
type Config struct {
	// EnableUpdateJobs is the store-wide default for background job mode.
	EnableUpdateJobs bool
	// SemanticNamespaces lists the namespaces with semantic processing.
	SemanticNamespaces map[ir.Namespace]bool
}

// DefaultSemanticNamespaces is used when Config.SemanticNamespaces is nil.
var DefaultSemanticNamespaces = map[ir.Namespace]bool{
	ir.NSMain:     true,
	ir.NSUser:     true,
	ir.NSCategory: true,
	ir.NSProperty: true,
	ir.NSType:     true,
	ir.NSConcept:  true,
}

// Updater is the update orchestrator.
type Updater struct {
	store      Store
	notifier   Notifier
	pages      PageInfoProvider
	annotator  Annotator
	protection EditProtection
	bus        eventbus.Bus
	cfg        Config
	locks      *subjectLocks
	logger     *zap.SugaredLogger
}

// Option configures an Updater.
type Option func(*Updater)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(u *Updater) { u.logger = logger.OrNop(l) }
}

// WithPageInfo sets the page metadata source. Without one every page is
// treated as existing with no metadata.
func WithPageInfo(p PageInfoProvider) Option {
	return func(u *Updater) { u.pages = p }
}

// WithAnnotator sets the predefined property annotator.
func WithAnnotator(a Annotator) Option {
	return func(u *Updater) { u.annotator = a }
}

// WithEditProtection sets the restricted-update check. Without one no
// update is restricted.
func WithEditProtection(p EditProtection) Option {
	return func(u *Updater) { u.protection = p }
}

// WithBus sets the notification bus for display-cache invalidation.
func WithBus(b eventbus.Bus) Option {
	return func(u *Updater) { u.bus = b }
}

// New creates an Updater writing to st.
func New(st Store, notifier Notifier, cfg Config, opts ...Option) *Updater {
	if cfg.SemanticNamespaces == nil {
		cfg.SemanticNamespaces = DefaultSemanticNamespaces
	}
	cfg.SemanticNamespaces = maps.Clone(cfg.SemanticNamespaces)

	u := &Updater{
		store:    st,
		notifier: notifier,
		cfg:      cfg,
		locks:    newSubjectLocks(),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// IsSemanticEnabled reports whether ns is configured for semantic
// processing.
func (u *Updater) IsSemanticEnabled(ns ir.Namespace) bool {
	return u.cfg.SemanticNamespaces[ns]
}
