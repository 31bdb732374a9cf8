package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/config"
	"github.com/AdamBeresnev/op-tournaments/internal/db"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/notify"
	"github.com/AdamBeresnev/op-tournaments/internal/scheduler"
	"github.com/AdamBeresnev/op-tournaments/internal/service"
	"github.com/AdamBeresnev/op-tournaments/internal/storage"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		return err
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	if cfg.DBDriver == "sqlite3" {
		sessionManager.Store = sqlite3store.New(database.DB)
	}

	dispatcher := events.NewDispatcher(logger)
	tournamentStore := store.NewTournamentStore(database)
	tournaments := service.NewTournamentService(database, tournamentStore, dispatcher, logger)
	matches := service.NewMatchService(database, tournamentStore, dispatcher, logger)

	hub := notify.NewHub(logger)
	dispatcher.OnAll(hub.HandleEvent)

	if cfg.Archive.Enabled() {
		bucket, err := storage.NewR2Store(ctx, storage.R2Config{
			AccountID:       cfg.Archive.AccountID,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.AccessKeySecret,
			BucketName:      cfg.Archive.Bucket,
			PublicBaseURL:   cfg.Archive.PublicURL,
		})
		if err != nil {
			return err
		}
		archiver := storage.NewArchiver(bucket, tournaments, logger)
		dispatcher.On(events.TournamentFinished, archiver.HandleEvent)
		logger.Info("Final standings archive enabled", slog.String("bucket", cfg.Archive.Bucket))
	}

	sweeper, err := scheduler.New(ctx, tournaments, cfg.RegistrationSweep, logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Shutdown()

	srv := &server{
		tournaments:    tournaments,
		matches:        matches,
		sessionManager: sessionManager,
		hub:            hub,
		upgrader:       notify.NewUpgrader(cfg.CORSOrigins),
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(srv, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("Server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
