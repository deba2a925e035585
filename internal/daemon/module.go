// Package daemon composes the bridge components into an fx application.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/bus"
	"github.com/fleetdesk/wabridge/internal/config"
	"github.com/fleetdesk/wabridge/internal/dispatch"
	"github.com/fleetdesk/wabridge/internal/httpapi"
	"github.com/fleetdesk/wabridge/internal/logging"
	"github.com/fleetdesk/wabridge/internal/manager"
	"github.com/fleetdesk/wabridge/internal/notify"
	"github.com/fleetdesk/wabridge/internal/sched"
	"github.com/fleetdesk/wabridge/internal/session"
	"github.com/fleetdesk/wabridge/internal/status"
	"github.com/fleetdesk/wabridge/internal/store"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Cfg *config.Config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideTenants,
			provideStore,
			provideManager,
			provideDispatcher,
			provideSweeper,
			provideListener,
			provideScheduler,
			provideHandlers,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureBaseDirs(p.Cfg.DataDir); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.Cfg.DataDir), p.Cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideTenants(p Params, logger *zap.Logger) (*config.Tenants, error) {
	t, err := config.LoadTenants(p.Cfg.TenantsFile)
	if err != nil {
		return nil, err
	}
	logger.Info("tenant registry loaded",
		zap.String("path", p.Cfg.TenantsFile),
		zap.Int("organizations", len(t.Organizations)))
	return t, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.BridgeDBPath(p.Cfg.DataDir)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideManager(p Params, b *bus.Bus, logger *zap.Logger) *manager.Manager {
	factory := manager.NewAdapterFactory(p.Cfg.DataDir, b, logger)
	return manager.New(factory, p.Cfg.DataDir, b, logger)
}

// connSource adapts the manager to the dispatcher's view of connections.
type connSource struct {
	m *manager.Manager
}

func (c connSource) State(org string) status.Snapshot {
	return c.m.State(org)
}

func (c connSource) Transport(org string) (dispatch.Transport, bool) {
	s, ok := c.m.Transport(org)
	if !ok {
		return nil, false
	}
	return s, true
}

func provideDispatcher(m *manager.Manager, b *bus.Bus, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(connSource{m: m}, b, logger)
}

func provideSweeper(p Params, db *store.DB, d *dispatch.Dispatcher, b *bus.Bus, logger *zap.Logger) *notify.Sweeper {
	return notify.NewSweeper(db, d, b, logger, notify.Options{
		Cooldown:  p.Cfg.ReminderCooldown(),
		BatchSize: p.Cfg.SweepBatchSize,
	})
}

func provideListener(db *store.DB, b *bus.Bus, logger *zap.Logger) *notify.ResponseListener {
	return notify.NewResponseListener(db, b, logger)
}

func provideScheduler(p Params, sw *notify.Sweeper, tenants *config.Tenants, logger *zap.Logger) (*sched.Scheduler, error) {
	return sched.New(sw, tenants, sched.FromConfig(p.Cfg), logger)
}

func provideHandlers(p Params, m *manager.Manager, d *dispatch.Dispatcher, sw *notify.Sweeper,
	db *store.DB, tenants *config.Tenants, logger *zap.Logger) *httpapi.Handlers {
	return httpapi.NewHandlers(m, d, sw, db, tenants, p.Cfg.SendTimeout(), logger)
}

func provideServer(p Params, h *httpapi.Handlers, logger *zap.Logger) *httpapi.Server {
	return httpapi.NewServer(p.Cfg.Addr, h, p.Cfg.APIToken, p.Cfg.DashboardOrigin, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *httpapi.Server, scheduler *sched.Scheduler,
	listener *notify.ResponseListener, m *manager.Manager, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			listener.Start()
			scheduler.Start()
			srv.Start()
			logger.Info("daemon started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("error stopping http server", zap.Error(err))
			}
			scheduler.Stop()
			listener.Stop()
			m.Shutdown()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
