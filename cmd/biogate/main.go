// Command biogate starts the behavioral fraud-gating service: telemetry
// ingestion, asynchronous risk analysis, and transfer decisioning.
//
// Usage:
//
//	go run ./cmd/biogate [flags]
//
// Flags:
//
//	-config      Path to a YAML or JSON config file (optional; defaults apply)
//	-demo-users  Comma-separated user ids to seed with demo bank accounts
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"biogate/internal/alerts"
	"biogate/internal/api"
	"biogate/internal/config"
	"biogate/internal/engine"
	"biogate/internal/ingest"
	"biogate/internal/ledger"
	"biogate/internal/logging"
	"biogate/internal/model"
	"biogate/internal/profile"
	"biogate/internal/session"
	"biogate/internal/storage"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	demoUsers := flag.String("demo-users", "", "comma-separated user ids to seed with demo accounts")
	flag.Parse()

	var mgr *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		mgr = m
	} else {
		cfg := config.DefaultConfig()
		if err := config.ApplyEnv(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		mgr = config.NewStaticManager(cfg)
	}
	cfg := mgr.Get()

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("biogate starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := store.Init(initCtx)
		cancel()
		if err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("durable storage enabled", "driver", cfg.Storage.Driver)
	}

	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	sessions := session.NewStore(cfg.Sessions.StoreLimit)
	profiles := profile.NewStore()
	ldg := ledger.New()
	emitter := alerts.NewEmitter(alertsStore, store, logger)

	if *demoUsers != "" {
		for _, user := range strings.Split(*demoUsers, ",") {
			user = strings.TrimSpace(user)
			if user == "" {
				continue
			}
			accounts, err := ldg.SeedDemoAccounts(user)
			if err != nil {
				logger.Warn("demo seed failed", "user_id", user, "err", err)
				continue
			}
			logger.Info("demo accounts seeded", "user_id", user, "accounts", len(accounts))
		}
	}

	eng := engine.NewEngine(cfg, logger, profiles, sessions, ldg, emitter, store, nil)

	events := make(chan model.Envelope, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, events)

	ingest.StartREST(ctx, mgr, events, eng, logger)
	ingest.StartKafka(ctx, mgr, events, logger)
	ingest.StartReplay(ctx, mgr, events, logger)
	api.Start(ctx, mgr, alertsStore, sessions, profiles, ldg, eng, logger, version)

	if mgr.Path() != "" {
		go mgr.Watch(3*time.Second,
			func(next *config.Config) {
				eng.UpdateConfig(next)
				logger.Info("config reloaded", "path", mgr.Path())
			},
			func(err error) {
				logger.Warn("config reload failed", "err", err)
			},
			ctx.Done(),
		)
	}

	<-ctx.Done()
	logger.Info("biogate shutting down")
}
