package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"parkmeter/internal/bridge"
	"parkmeter/internal/config"
	"parkmeter/internal/db"
	httpserver "parkmeter/internal/http"
	"parkmeter/internal/http/handlers"
	"parkmeter/internal/models"
	"parkmeter/internal/offline"
	"parkmeter/internal/redisstore"
	"parkmeter/internal/repo"
	"parkmeter/internal/scheduler"
	"parkmeter/internal/service"
	"parkmeter/internal/ws"
)

// App wires parkmeter dependencies.
type App struct {
	server      *httpserver.Server
	sched       *scheduler.Scheduler
	hub         *ws.Hub
	pool        *pgxpool.Pool
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph. Schema problems abort here: the
// ledger never serves from a layout it does not understand.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	ledger := service.NewLedgerService(pool, cfg.Tariff.HourlyRateCents, logger)

	var (
		br     bridge.Bridge
		probe  bridge.ConnectivityProbe
		remote bool
	)
	switch cfg.Bridge.Mode {
	case config.BridgeModeHTTP:
		br = bridge.NewHTTP(cfg.Bridge.BaseURL, cfg.Bridge.APIKey, cfg.Bridge.Timeout, nil)
		probe = bridge.NewHTTPProbe(cfg.Bridge.BaseURL, 3*time.Second, nil)
		remote = true
	default:
		br = bridge.NewLocal(ledger)
		probe = bridge.AlwaysOnline{}
	}

	queue := offline.NewQueue(repo.NewQueueRepo(pool), br, ledger, logger)

	var (
		mirror  scheduler.Mirror
		drainer scheduler.Drainer
	)
	if remote {
		mirror = ledger
		drainer = queue
	}
	sched := scheduler.New(br, cfg.Sync.BaseInterval, mirror, drainer, logger)

	sessions := service.NewSessionsService(ledger, br, probe, sched, remote, logger)

	hub := ws.NewHub(logger)
	sched.Subscribe(hub.Broadcast)

	var (
		redisClient   *redis.Client
		snapshotCache handlers.SnapshotCache
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redisstore.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			pool.Close()
			return nil, err
		}
		snapshots := redisstore.NewSnapshotStore(redisClient, cfg.SnapshotTTL())
		snapshotCache = snapshots
		sched.Subscribe(func(snap models.Snapshot) {
			saveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := snapshots.Save(saveCtx, snap); err != nil {
				logger.Warn("failed to cache snapshot", zap.Error(err))
			}
		})
	}

	routes := httpserver.Routes{
		ParkingStart:   handlers.NewParkingStartHandler(sessions),
		ParkingFinish:  handlers.NewParkingFinishHandler(sessions),
		ActiveList:     handlers.NewActiveSessionsHandler(sessions),
		SessionHistory: handlers.NewSessionHistoryHandler(sessions),
		Snapshot:       handlers.NewSnapshotHandler(sched, snapshotCache),
		AuditList:      handlers.NewAuditListHandler(sessions),
		SnapshotWS:     hub.Handler,
		Health:         handlers.NewHealthHandler(),
	}

	router := httpserver.NewRouter(routes)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		sched:       sched,
		hub:         hub,
		pool:        pool,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the scheduler and HTTP server and blocks until ctx is
// cancelled. Teardown waits for the scheduler loop to exit.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := a.sched.Run(runCtx); err != nil && err != context.Canceled {
			a.logger.Warn("scheduler stopped", zap.Error(err))
		}
	}()

	err := a.server.Run(runCtx)
	cancel()
	<-schedDone
	return err
}

// Close releases resources.
func (a *App) Close() {
	a.hub.Close()
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
