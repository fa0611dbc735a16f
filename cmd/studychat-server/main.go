// Package main provides the StudyChat backend server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tailedflox9-maker/studychat/internal/config"
	"github.com/tailedflox9-maker/studychat/internal/db"
	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/metrics"
	"github.com/tailedflox9-maker/studychat/internal/server"
	"github.com/tailedflox9-maker/studychat/internal/settings"
	"github.com/tailedflox9-maker/studychat/internal/store"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	logger.Info("starting studychat-server", "port", cfg.ServerPort)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		cancel()
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if err := dbClient.InitSchema(ctx); err != nil {
		cancel()
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("STUDYCHAT_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			cancel()
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		logger.Warn("database wiped")
	}

	collector := metrics.NewCollector()
	st := store.New(dbClient, logger, collector)

	mgr, err := settings.Load(ctx, st, cfg.DefaultModel, logger)
	if err != nil {
		cancel()
		logger.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	gen := llm.NewGenerator(mgr, st, logger, collector)
	if err := llm.RegisterFromConfig(ctx, gen, cfg, logger); err != nil {
		cancel()
		logger.Error("failed to register model providers", "error", err)
		os.Exit(1)
	}
	cancel()
	logger.Info("model providers registered", "models", gen.Models(), "selected", mgr.CurrentModel())

	srv := server.New(cfg.ServerPort, server.Dependencies{
		Store:     st,
		Generator: gen,
		Settings:  mgr,
		Metrics:   collector,
		Logger:    logger,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
