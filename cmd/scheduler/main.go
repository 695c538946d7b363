package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	callsrepo "aileadgen_backend/internal/calls/repository"
	callsservice "aileadgen_backend/internal/calls/service"
	campaignsrepo "aileadgen_backend/internal/campaigns/repository"
	campaignsservice "aileadgen_backend/internal/campaigns/service"
	"aileadgen_backend/internal/email"
	leadsrepo "aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/internal/notification"
	"aileadgen_backend/internal/retell"
	"aileadgen_backend/internal/scheduler"
	"aileadgen_backend/internal/storage"
	"aileadgen_backend/platform/config"
	"aileadgen_backend/platform/db"
	platformevents "aileadgen_backend/platform/events"
	"aileadgen_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := platformevents.NewInMemoryBus(log)

	// Booking emails fire here too: the sweep can reconcile calls, and every
	// reconcile may land on booked.
	var sender email.Sender
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
		)
	}
	notificationModule := notification.NewModule(sender, cfg.GetOperatorEmail(), log)
	notificationModule.SubscribeToEvents(eventBus)

	// Worker-side call dispatch wiring (no HTTP handlers required).
	retellClient := retell.New(cfg, log)
	leadsRepo := leadsrepo.New(pool)
	callsService := callsservice.New(
		callsrepo.New(pool), leadsRepo, retellClient, eventBus, log,
		callsservice.Config{AgentID: cfg.GetRetellAgentID()},
	)
	campaignsService := campaignsservice.New(
		campaignsrepo.New(pool), callsService, leadsRepo, log,
	)

	worker, err := scheduler.NewWorker(cfg, callsService, campaignsService, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	if cfg.IsMinIOEnabled() {
		archiver, err := storage.NewRecordingArchiver(cfg, log)
		if err != nil {
			log.Error("failed to initialize recording archiver", "error", err)
			panic("failed to initialize recording archiver: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure recordings bucket", 5, 2*time.Second, func() error {
			return archiver.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure recordings bucket", "error", err)
			panic("failed to ensure recordings bucket: " + err.Error())
		}
		worker.SetArchiver(archiver)
		log.Info("recording archiver initialized", "bucket", cfg.GetMinioBucketCallRecordings())
	} else {
		log.Warn("MinIO not configured; recording archival disabled")
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
