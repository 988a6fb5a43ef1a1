package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	foundry "github.com/kunalsaurav01/agentic-architect"
	"github.com/kunalsaurav01/agentic-architect/internal/checkpoint"
	"github.com/kunalsaurav01/agentic-architect/internal/config"
	"github.com/kunalsaurav01/agentic-architect/internal/engine"
	"github.com/kunalsaurav01/agentic-architect/internal/evaluator"
	"github.com/kunalsaurav01/agentic-architect/internal/httpapi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	cfg, err := config.Load(os.Getenv("FOUNDRY_CONFIG"))
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	// modernc.org/sqlite serializes writes itself; one connection keeps
	// table locking out of the picture.
	db.SetMaxOpenConns(1)

	store, err := checkpoint.NewSQLiteStore(db)
	if err != nil {
		return err
	}

	metrics := &foundry.BasicMetrics{}
	obs := foundry.NewCompositeObserver(
		foundry.NewLoggingObserver(log),
		metrics,
	)

	eng, err := engine.New(store, buildCapabilities(cfg, log), cfg.Settings(obs))
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(eng, store, log)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTP.Addr, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	snap := metrics.Snapshot()
	log.Info("final metrics",
		"sessions_started", snap.SessionsStarted,
		"steps_completed", snap.StepsCompleted,
		"sessions_suspended", snap.SessionsSuspended,
		"sessions_ended", snap.SessionsEnded,
	)
	return err
}

// buildCapabilities selects the model backend. Without a configured
// backend the server runs on deterministic canned capabilities, which
// is enough to exercise the full workflow locally.
func buildCapabilities(cfg config.Config, log *slog.Logger) foundry.Capabilities {
	if cfg.Model.BaseURL == "" {
		log.Warn("no model backend configured, using canned capabilities",
			"hint", "set FOUNDRY_MODEL_BASE_URL or model.base_url")
		return foundry.NewStaticCapabilities()
	}

	log.Info("using model backend", "base_url", cfg.Model.BaseURL, "model", cfg.Model.Name)
	return foundry.NewModelCapabilities(&evaluator.ModelClient{
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
	})
}
