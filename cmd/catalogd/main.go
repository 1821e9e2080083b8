package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"gametrack/pkg/cachestore"
	"gametrack/pkg/catalog"
	"gametrack/pkg/config"
	"gametrack/pkg/database"
	"gametrack/pkg/igdb"
	"gametrack/pkg/logging"
	"gametrack/pkg/notify"
	"gametrack/pkg/scheduler"
	"gametrack/pkg/server"
	"gametrack/pkg/storage"
)

const VERSION = "0.1.0"

var configPath = flag.String("config", "config.yml", "Path to YAML configuration file")

func main() {
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithComponent("catalogd").WithField("version", VERSION).Info("starting catalog daemon")

	// Shared cache tier: tokens, sync state, stop flag and the snapshot
	store, err := cachestore.OpenBadger(cfg.Cache.Dir)
	if err != nil {
		logger.WithComponent("catalogd").WithError(err).Fatal("failed to open cache store")
	}
	defer store.Close()

	logger.WithComponent("catalogd").WithField("dir", cfg.Cache.Dir).Info("cache store opened")

	// Relational fallback tier is optional
	var db *database.DB
	var repo *storage.Repository
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = database.Connect(ctx, database.DefaultConfig(cfg.Database.URL))
		cancel()
		if err != nil {
			logger.WithComponent("catalogd").WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()

		migrationsPath := cfg.Database.GetMigrationsPath()
		logger.WithComponent("catalogd").WithField("path", migrationsPath).Info("running database migrations")
		if err := database.MigrateUp(cfg.Database.URL, migrationsPath); err != nil {
			logger.WithComponent("catalogd").WithError(err).Fatal("failed to run migrations")
		}

		version, dirty, err := database.MigrateVersion(cfg.Database.URL, migrationsPath)
		if err != nil {
			logger.WithComponent("catalogd").WithError(err).Warn("failed to get migration version")
		} else {
			logger.WithComponent("catalogd").WithFields(logrus.Fields{
				"version": version,
				"dirty":   dirty,
			}).Info("migrations complete")
		}

		repo = storage.NewRepository(db.Pool)
	} else {
		logger.WithComponent("catalogd").Info("no database configured, relational fallback disabled")
	}

	// Upstream client with token exchange cached in the shared store
	tokens := igdb.NewTokenSource(cfg.IGDB.TokenURL, cfg.IGDB.ClientID, cfg.IGDB.ClientSecret, store, logger)

	clientConfig := igdb.DefaultClientConfig()
	clientConfig.BaseURL = cfg.IGDB.BaseURL
	clientConfig.MaxRetries = cfg.IGDB.GetMaxRetries()
	clientConfig.Timeout = cfg.IGDB.GetRequestTimeout()
	clientConfig.RateLimit = cfg.IGDB.GetRateLimitDelay()
	client := igdb.NewClient(cfg.IGDB.ClientID, tokens, clientConfig, logger)

	states := catalog.NewStateStore(store)
	snapshots := catalog.NewSnapshots(store, cfg.Cache.GetSnapshotTTL())
	query := catalog.NewQuery(snapshots, states)

	refresherConfig := &catalog.RefresherConfig{
		PageSize:       cfg.IGDB.GetPageSize(),
		PopularityType: cfg.IGDB.PopularityType,
	}

	// Avoid a typed-nil interface when the database tier is off
	var sink catalog.ItemSink
	if repo != nil {
		sink = repo
	}
	refresher := catalog.NewRefresher(client, states, snapshots, sink, refresherConfig, logger)

	// Optional Discord alerting on run outcomes
	if cfg.Notify.NotifyEnabled() {
		announcer, err := notify.NewAnnouncer(&cfg.Notify, logger)
		if err != nil {
			logger.WithComponent("catalogd").WithError(err).Warn("failed to create Discord announcer, continuing without notifications")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err = announcer.Start(ctx)
			cancel()
			if err != nil {
				logger.WithComponent("catalogd").WithError(err).Warn("Discord announcer failed to connect, continuing without notifications")
			} else {
				refresher.OnFinish(announcer.AnnounceRun)
				defer announcer.Stop()
			}
		}
	}

	sched := scheduler.New(refresher, snapshots, states, cfg.Sync.Hour, logger)
	if cfg.Sync.Enabled {
		if err := sched.Start(); err != nil {
			logger.WithComponent("catalogd").WithError(err).Fatal("failed to start scheduler")
		}
		defer sched.Stop()
	} else {
		logger.WithComponent("catalogd").Info("scheduled refresh disabled, manual triggers only")
	}

	var details server.DetailStore
	if repo != nil {
		details = repo
	}
	srv := server.New(&cfg.Server, logger, query, snapshots, states, sched, details, client, store)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithComponent("catalogd").WithField("signal", sig.String()).Info("shutdown signal received, gracefully stopping...")
	case err := <-serverErr:
		if err != nil {
			logger.WithComponent("catalogd").WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithComponent("catalogd").WithError(err).Error("HTTP server shutdown failed")
	}

	logger.WithComponent("catalogd").Info("catalog daemon shutdown complete")
}
