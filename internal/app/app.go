package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/config"
	"github.com/yungbote/alohomora/internal/data/db"
	apphttp "github.com/yungbote/alohomora/internal/http"
	"github.com/yungbote/alohomora/internal/observability"
	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/replication"
)

// App is one running role: authority, replica or client app.
type App struct {
	Role     string
	Log      *logger.Logger
	DB       *db.Service
	Router   *gin.Engine
	Server   *apphttp.Server
	Cfg      config.Config
	Repos    Repos
	Clients  Clients
	Services Services

	Replication Replication

	purger       *sessionPurger
	shutdownOTel func(context.Context) error
}

// New opens storage, migrates the role's schema and wires every component.
func New(ctx context.Context, role string, cfg config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(role); err != nil {
		return nil, err
	}
	log = log.With("role", role)
	clk := clock.RealClock{}

	otelCfg := cfg.Otel
	if otelCfg.ServiceName == "" || otelCfg.ServiceName == config.Defaults().Otel.ServiceName {
		otelCfg.ServiceName = "alohomora-" + role
	}
	cfg.Otel = otelCfg
	shutdownOTel := observability.InitOTel(ctx, log, otelCfg)

	dbs, err := openStore(cfg, role, log)
	if err != nil {
		_ = shutdownOTel(ctx)
		return nil, err
	}

	a := &App{
		Role:         role,
		Log:          log,
		DB:           dbs,
		Cfg:          cfg,
		shutdownOTel: shutdownOTel,
	}
	if err := a.wire(ctx, clk); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, clk clock.Clock) error {
	a.Repos = wireRepos(a.DB.DB(), a.Log)

	clients, err := wireClients(ctx, a.Log, a.Role, a.Cfg)
	if err != nil {
		return err
	}
	a.Clients = clients

	svc, err := wireServices(a.DB.DB(), a.Log, a.Role, a.Cfg, a.Repos, a.Clients, clk)
	if err != nil {
		return err
	}
	a.Services = svc

	switch a.Role {
	case config.RoleReplica:
		rep, err := wireReplication(a.Log, a.Cfg, a.Services, a.Clients, clk)
		if err != nil {
			return err
		}
		a.Replication = rep
	case config.RoleApp:
		a.purger = newSessionPurger(a.Services.Session, a.Cfg.App.PurgeInterval, a.Log)
	}

	handlers := wireHandlers(a.Log, a.Role, a.Cfg, a.Services, a.Clients, clk)
	a.Router = wireRouter(a.Log, a.Role, a.Cfg, handlers)
	a.Server = apphttp.NewServer(listenAddr(a.Role, a.Cfg), a.Router)
	return nil
}

// Run serves HTTP and runs the role's background work until ctx is done or
// any part fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if d := a.Services.Dispatcher; d != nil {
		d.Start(gctx)
	}
	g.Go(func() error {
		a.Log.Info("Listening", "addr", a.Server.Addr())
		return a.Server.Run(gctx)
	})
	if s := a.Replication.Scheduler; s != nil {
		g.Go(func() error { return s.Run(gctx) })
	}
	if a.purger != nil {
		g.Go(func() error { return a.purger.Run(gctx) })
	}

	err := g.Wait()
	if d := a.Services.Dispatcher; d != nil {
		d.Wait()
	}
	return err
}

// SyncOnce runs a single replica sync cycle outside the scheduler.
func (a *App) SyncOnce(ctx context.Context) (*replication.CycleReport, error) {
	if a == nil || a.Replication.Syncer == nil {
		return nil, fmt.Errorf("sync requires the replica role")
	}
	return a.Replication.Syncer.RunOnce(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients.Redis != nil {
		if err := a.Clients.Redis.Close(); err != nil {
			a.Log.Warn("Closing redis failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("Closing database failed", "error", err)
		}
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(context.Background()); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// Migrate creates the tables a role needs and returns.
func Migrate(cfg config.Config, role string, log *logger.Logger) error {
	dbs, err := openStore(cfg, role, log)
	if err != nil {
		return err
	}
	return dbs.Close()
}

func openStore(cfg config.Config, role string, log *logger.Logger) (*db.Service, error) {
	dbs, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	migrate := db.AutoMigrateAuthority
	if role == config.RoleApp {
		migrate = db.AutoMigrateClient
	}
	if err := migrate(dbs.DB()); err != nil {
		_ = dbs.Close()
		return nil, err
	}
	return dbs, nil
}
