// Package main is the entry point for the Overtime rules server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/overtimegame/server/internal/api"
	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/infra/cache"
	"github.com/overtimegame/server/internal/infra/storage"
	"github.com/overtimegame/server/internal/network"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("OVERTIME_CONFIG"), "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	bootLog := logger.NewLogger()
	if err != nil {
		bootLog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	cfg = config.ApplyEnv(cfg)

	appLogger := bootLog
	if cfg.Development {
		appLogger = logger.NewDevelopment()
	}
	defer appLogger.Sync()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.Get()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	appLogger.Info("Catalog loaded", "cards", len(cat.All()))

	appLogger.Info("Initializing SQLite database", "path", cfg.DBPath)
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBPath != ":memory:" {
		db.SetMaxOpenConns(cfg.Tuning.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.Tuning.DBMaxIdleConns)
	}

	eventRepo := storage.NewSQLiteEventRepository(db)
	eventLog := events.NewEventLog(storage.NewEventWriter(eventRepo, collector))
	eventLog.OnPersistError(func(e events.GameEvent, err error) {
		appLogger.Warn("Failed to persist event", "event", e.ID, "type", e.Type, "error", err)
	})

	var decks storage.DeckRepository = storage.NewSQLiteDeckRepository(db)
	if cfg.DeckFile != "" {
		decks = storage.NewFileDeckRepository(cfg.DeckFile)
	}

	var matchCache *cache.MatchCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.Dial(ctx, cfg.RedisAddr, cfg.Tuning.RedisPoolSize)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without snapshot cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rdb.Close()
			matchCache = cache.NewMatchCache(cache.NewGoRedisClient(rdb))
			appLogger.Info("Snapshot cache connected", "addr", cfg.RedisAddr)
		}
	}

	sessions, err := session.NewManager(session.Deps{
		Catalog:        cat,
		EventLog:       eventLog,
		Decks:          decks,
		Matches:        storage.NewSQLiteMatchRepository(db),
		Cache:          matchCache,
		Logger:         appLogger,
		Metrics:        collector,
		EnemyStepDelay: cfg.EnemyStepDelay,
		Seed:           cfg.Seed,
	})
	if err != nil {
		return err
	}

	hub := network.NewHub(sessions, cfg.Tuning, appLogger, collector)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, 0)

	router := api.NewRouter(api.Deps{
		Sessions:     sessions,
		Catalog:      cat,
		Hub:          hub,
		Replay:       network.NewReplayHandler(eventLog, storage.NewReconstructor(eventRepo), appLogger),
		Metrics:      collector,
		Logger:       appLogger,
		Development:  cfg.Development,
		DefaultRules: cfg.Rules,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP API & WS server listening", "addr", cfg.Addr, "rules", cfg.Rules.Profile)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	appLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range sessions.List() {
		_ = sessions.Close(shutdownCtx, id)
	}
	return srv.Shutdown(shutdownCtx)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
