package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/cmhannon/flashfam/internal/config"
	"github.com/cmhannon/flashfam/internal/content"
	"github.com/cmhannon/flashfam/internal/family"
	"github.com/cmhannon/flashfam/internal/practice"
	"github.com/cmhannon/flashfam/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("flashfam", pflag.ExitOnError)
	configPath := flags.String("config", "flashfam.yaml", "Path to the YAML config file")
	flags.String("listen", ":8420", "HTTP listen address")
	flags.String("data-dir", "data", "Directory for family metadata and kid databases")
	flags.String("repos-dir", "repos", "Checkout directory for deck content repositories")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	fam, err := family.Load(filepath.Join(cfg.DataDir, "family.json"), family.Settings{
		HardCardPercentage: cfg.Session.HardCardPercentage,
		SessionCardCount:   cfg.Session.CardCount,
	})
	if err != nil {
		logger.Error("failed to load family metadata", "error", err)
		os.Exit(1)
	}

	dbs := family.NewDBManager(cfg.DataDir, logger)
	defer dbs.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No incomplete session may survive a restart; selection relies on
	// the last completed session being the last session, full stop.
	kids := fam.Kids()
	ids := make([]string, len(kids))
	for i, k := range kids {
		ids[i] = k.ID
	}
	if err := dbs.PurgeIncomplete(ctx, ids); err != nil {
		logger.Error("failed to purge incomplete sessions", "error", err)
		os.Exit(1)
	}

	staging := practice.NewStaging(cfg.Session.PendingTTL)
	svc := practice.NewService(staging, logger)
	syncer := content.NewSyncer(cfg.ReposDir, logger)
	server := web.NewServer(fam, dbs, svc, syncer, logger)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not finish cleanly", "error", err)
		}
	}()

	logger.Info("flashfam listening", "addr", cfg.Listen, "data_dir", cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("flashfam stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
