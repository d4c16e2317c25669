// Package app composes the client for the terminal UI and the CLI.
package app

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/config"
	"github.com/matheus3301/wachat/internal/directory"
	"github.com/matheus3301/wachat/internal/engine"
	"github.com/matheus3301/wachat/internal/lock"
	"github.com/matheus3301/wachat/internal/logging"
	"github.com/matheus3301/wachat/internal/metrics"
	"github.com/matheus3301/wachat/internal/optimistic"
	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/schedule"
	"github.com/matheus3301/wachat/internal/session"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/store"
	"github.com/matheus3301/wachat/internal/transport/push"
	"github.com/matheus3301/wachat/internal/transport/rest"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	ConfigPath  string // empty = session.ConfigPath()

	// Live keeps the client current: initial fetch, push channel,
	// periodic resync, contacts hot reload and the metrics endpoint.
	// One-shot commands leave it off and call Engine.Resync themselves.
	Live bool
	// Exclusive takes the session lock so only one interactive client runs.
	Exclusive bool
	// LogStderr mirrors warnings to stderr.
	LogStderr bool
}

// Runtime is what the binaries drive once the module has started.
type Runtime struct {
	Session     string
	Config      *config.Config
	Bus         *bus.Bus
	Engine      *engine.Engine
	Coordinator *optimistic.Coordinator
	Logger      *zap.Logger
}

// Module returns the fx module for the client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.ConfigPath == "" {
		p.ConfigPath = session.ConfigPath()
	}
	return fx.Module("wachat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideContacts,
			provideStoreDirectory,
			provideDirectory,
			provideMetrics,
			provideMetricsServer,
			provideREST,
			provideProjector,
			provideEngine,
			providePush,
			provideCoordinator,
			provideResync,
			provideLearner,
			provideRuntime,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(session.EnvPath()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.LogLevel, p.LogStderr)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

// provideLock returns a nil lock for non-exclusive runs; Release accepts it.
func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if !p.Exclusive {
		return nil, nil
	}
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	path := session.ContactsDBPath(p.SessionName)
	db, err := store.OpenMigrated(path)
	if err != nil {
		return nil, err
	}
	if err := db.SyncConfig(cfg.Directory()); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("contact cache ready", zap.String("path", path), zap.Int("configured", len(cfg.Contacts)))
	return db, nil
}

func provideContacts(cfg *config.Config) *directory.Static {
	return directory.NewStatic(cfg.Directory())
}

func provideStoreDirectory(db *store.DB) (*store.Directory, error) {
	return store.NewDirectory(db)
}

// provideDirectory puts the configured contacts ahead of the learned ones.
func provideDirectory(contacts *directory.Static, cached *store.Directory) directory.Directory {
	return directory.Chain{contacts, cached}
}

func provideMetrics(b *bus.Bus) *metrics.Metrics {
	m := metrics.New()
	m.RegisterDropped(b.Dropped)
	return m
}

// provideMetricsServer returns nil unless a live run has metrics_addr set.
func provideMetricsServer(p Params, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*metrics.Server, error) {
	if !p.Live || cfg.MetricsAddr == "" {
		return nil, nil
	}
	return metrics.Listen(cfg.MetricsAddr, m, logger)
}

func provideREST(cfg *config.Config, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.APIURL, &http.Client{Timeout: 15 * time.Second}, logger)
}

func provideProjector(dir directory.Directory) *projection.Projector {
	return projection.NewProjector(dir, time.Now)
}

func provideEngine(c *rest.Client, proj *projection.Projector, b *bus.Bus, m *status.Machine, met *metrics.Metrics, logger *zap.Logger) *engine.Engine {
	return engine.New(engine.Config{
		Fetcher:   c,
		Projector: proj,
		Bus:       b,
		Status:    m,
		Metrics:   met,
		Logger:    logger.Named("engine"),
	})
}

func providePush(cfg *config.Config, e *engine.Engine, logger *zap.Logger) *push.Client {
	return push.New(cfg.SocketURL, e.HandlePush, logger.Named("push"))
}

func provideCoordinator(cfg *config.Config, e *engine.Engine, c *rest.Client, dir directory.Directory, b *bus.Bus, met *metrics.Metrics, logger *zap.Logger) *optimistic.Coordinator {
	return optimistic.New(optimistic.Config{
		Queue:      e,
		Writer:     c,
		Directory:  dir,
		PlatformID: cfg.PlatformWaID,
		Bus:        b,
		Metrics:    met,
		Logger:     logger.Named("writes"),
	})
}

func provideResync(p Params, cfg *config.Config, e *engine.Engine, logger *zap.Logger) (*schedule.Resync, error) {
	interval := cfg.Resync()
	if !p.Live {
		interval = 0
	}
	return schedule.NewResync(e, interval, logger.Named("schedule"))
}

func provideLearner(e *engine.Engine, db *store.DB, cached *store.Directory, b *bus.Bus, logger *zap.Logger) *learner {
	return newLearner(e, db, cached, b, logger.Named("contacts"))
}

func provideRuntime(p Params, cfg *config.Config, b *bus.Bus, e *engine.Engine, c *optimistic.Coordinator, logger *zap.Logger) *Runtime {
	return &Runtime{
		Session:     p.SessionName,
		Config:      cfg,
		Bus:         b,
		Engine:      e,
		Coordinator: c,
		Logger:      logger,
	}
}

type lifecycleDeps struct {
	fx.In

	Params      Params
	Lock        *lock.Lock
	DB          *store.DB
	Contacts    *directory.Static
	Cached      *store.Directory
	Metrics     *metrics.Server
	Engine      *engine.Engine
	Push        *push.Client
	Coordinator *optimistic.Coordinator
	Resync      *schedule.Resync
	Learner     *learner
	Logger      *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Name changes do not touch the store, so redraw explicitly.
			reproject := func() {
				if err := d.Engine.Reproject(); err != nil {
					d.Logger.Debug("reproject skipped", zap.Error(err))
				}
			}
			d.Contacts.OnChange(reproject)
			d.Cached.OnChange(reproject)

			d.Learner.Start()
			d.Engine.Start(d.Params.Live)
			if !d.Params.Live {
				return nil
			}

			d.Push.Start(ctx)
			if err := d.Resync.Start(ctx); err != nil {
				return err
			}
			if err := directory.Watch(ctx, d.Params.ConfigPath, config.LoadContacts, d.Contacts, d.Logger); err != nil {
				d.Logger.Warn("contacts hot reload disabled", zap.Error(err))
			}
			if d.Metrics != nil {
				go d.Metrics.Serve()
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := d.Resync.Stop(); err != nil {
				d.Logger.Warn("error stopping resync", zap.Error(err))
			}
			d.Push.Stop()
			// Pending writes still need the queue to confirm or roll back.
			d.Coordinator.Wait()
			d.Engine.Stop()
			d.Learner.Stop()
			if d.Metrics != nil {
				_ = d.Metrics.Shutdown(stopCtx)
			}
			if err := d.DB.Close(); err != nil {
				d.Logger.Warn("error closing contact cache", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				d.Logger.Warn("error releasing lock", zap.Error(err))
			}
			d.Logger.Info("client stopped")
			_ = d.Logger.Sync()
			return nil
		},
	})
}
