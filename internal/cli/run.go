package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/annotator"
	"github.com/roach88/semstore/internal/config"
	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/eventbus"
	"github.com/roach88/semstore/internal/factfile"
	"github.com/roach88/semstore/internal/jobs"
	"github.com/roach88/semstore/internal/lang"
	"github.com/roach88/semstore/internal/logger"
	"github.com/roach88/semstore/internal/propagation"
	"github.com/roach88/semstore/internal/store"
	"github.com/roach88/semstore/internal/updater"
)

// env is the set of components one command invocation works with.
type env struct {
	settings config.Settings
	logger   *zap.SugaredLogger
	lang     *lang.Table
	store    *store.Store
	queue    *jobs.Queue
	bus      *eventbus.Dispatcher
	redis    *eventbus.RedisBus
}

// openEnv loads settings, builds the logger and opens the store and job
// queue. Failures are command errors.
func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		settings.Database.Path = opts.Database
	}
	if opts.Verbose {
		settings.Log.Verbose = true
	}

	log, err := logger.New(settings.LoggerOptions())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}

	log.Debugw("opening database", "path", settings.Database.Path)
	st, err := store.Open(settings.Database.Path,
		store.WithLogger(log),
		store.WithIDRetention(settings.IDRetention()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	queue, err := jobs.NewQueue(ctx, st.DB(), jobs.WithLogger(log))
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open job queue", err)
	}

	return &env{
		settings: settings,
		logger:   log,
		lang:     settings.LanguageTable(),
		store:    st,
		queue:    queue,
		bus:      eventbus.NewDispatcher(),
	}, nil
}

// connectBus subscribes the local event log and connects the Redis
// notification bus when one is configured.
func (e *env) connectBus(ctx context.Context) error {
	e.bus.Subscribe(eventbus.DisplayCacheInvalidate, "log", func(_ context.Context, ev eventbus.Event) error {
		e.logger.Infow("display cache invalidated", "subject", ev.Subject.Key())
		return nil
	})
	if e.settings.Bus.RedisAddr == "" {
		return nil
	}
	rb, err := eventbus.NewRedisBus(ctx, e.settings.Bus.RedisAddr, e.settings.Bus.RedisChannel, e.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect notification bus", err)
	}
	e.redis = rb
	return nil
}

// notificationBus returns the bus the updater publishes to.
func (e *env) notificationBus() eventbus.Bus {
	if e.redis == nil {
		return e.bus
	}
	return eventbus.Multi{e.bus, e.redis}
}

// updater wires the update orchestrator over pages.
func (e *env) updater(pages *factfile.Pages) *updater.Updater {
	notifier := propagation.New(e.settings.DeclarationProperties(), e.store, e.queue,
		propagation.WithLogger(e.logger))

	return updater.New(e.store, notifier, e.settings.UpdaterConfig(),
		updater.WithLogger(e.logger),
		updater.WithPageInfo(pages),
		updater.WithEditProtection(pages),
		updater.WithAnnotator(annotator.New(e.settings.Updates.PageSpecialProperties)),
		updater.WithBus(e.notificationBus()))
}

func (e *env) Close() error {
	var errs []error
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	errs = append(errs, e.store.Close())
	_ = e.logger.Sync()
	return errors.Join(errs...)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
// Use command's context if available (for testing), otherwise create one.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
