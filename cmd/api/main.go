package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/pixelforge/backend/internal/config"
	"github.com/pixelforge/backend/internal/handlers"
	"github.com/pixelforge/backend/internal/jobs"
	"github.com/pixelforge/backend/internal/notify"
	"github.com/pixelforge/backend/internal/repository"
	"github.com/pixelforge/backend/internal/router"
	"github.com/pixelforge/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations (job queue tables)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	// Repositories
	taskRepo := repository.NewTaskRepo(pool)
	artistRepo := repository.NewArtistRepo(pool)
	offerRepo := repository.NewOfferRepo(pool)
	configRepo := repository.NewConfigRepo(pool)
	activityRepo := repository.NewActivityRepo(pool)

	// Notification enqueue is a closure over the River client, which needs the
	// workers, which need the assignment service. Late-bind it to break the cycle.
	var enqueueMu sync.Mutex
	var enqueueFn services.EnqueueNotificationTx
	enqueueNotification := func(ctx context.Context, tx pgx.Tx, args jobs.SendNotificationArgs) error {
		enqueueMu.Lock()
		fn := enqueueFn
		enqueueMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	ranker := services.NewRanker(artistRepo)
	engine := services.NewAssignmentService(pool, taskRepo, offerRepo, artistRepo, configRepo, activityRepo, ranker, enqueueNotification, logger)
	configSvc := services.NewConfigService(pool, configRepo, logger)

	var gateway notify.Gateway
	if cfg.NotifyBaseURL != "" {
		gateway = notify.NewWebhookGateway(cfg.NotifyBaseURL, logger)
	} else {
		gateway = &notify.LogGateway{Logger: logger}
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewNotificationWorker(gateway))
	river.AddWorker(workers, jobs.NewSweepWorker(engine, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.QueueMaxWorkers},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return jobs.SweepOffersArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	enqueueMu.Lock()
	enqueueFn = func(ctx context.Context, tx pgx.Tx, args jobs.SendNotificationArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	enqueueMu.Unlock()

	taskHandler := &handlers.TaskHandler{TaskRepo: taskRepo, Engine: engine, Logger: logger}
	adminHandler := &handlers.AdminHandler{Tasks: taskRepo, Offers: offerRepo, Configs: configSvc, Assigner: engine, Logger: logger}

	mux := router.New(taskHandler, adminHandler, []byte(cfg.SessionSecret))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
