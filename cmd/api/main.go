package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aileadgen_backend/internal/analytics"
	"aileadgen_backend/internal/calls"
	callsservice "aileadgen_backend/internal/calls/service"
	"aileadgen_backend/internal/campaigns"
	"aileadgen_backend/internal/email"
	"aileadgen_backend/internal/events"
	apphttp "aileadgen_backend/internal/http"
	"aileadgen_backend/internal/http/router"
	"aileadgen_backend/internal/leads"
	"aileadgen_backend/internal/notification"
	"aileadgen_backend/internal/retell"
	"aileadgen_backend/internal/scheduler"
	"aileadgen_backend/migrations"
	"aileadgen_backend/platform/config"
	"aileadgen_backend/platform/db"
	platformevents "aileadgen_backend/platform/events"
	"aileadgen_backend/platform/logger"
	"aileadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := platformevents.NewInMemoryBus(log)

	val := validator.New()

	// ========================================================================
	// Calling Provider
	// ========================================================================

	retellClient := retell.New(cfg, log)

	agentID := cfg.GetRetellAgentID()
	if agentID == "" {
		agentCfg, err := retell.LoadAgentConfig(cfg.GetRetellAgentConfigPath())
		if err != nil {
			log.Error("failed to load agent config", "error", err)
			panic("failed to load agent config: " + err.Error())
		}
		if err := withRetry(ctx, log, "provision calling agent", 5, 2*time.Second, func() error {
			id, err := retellClient.GetOrCreateAgent(ctx, agentCfg)
			if err != nil {
				return err
			}
			agentID = id
			return nil
		}); err != nil {
			log.Error("failed to provision calling agent", "error", err)
			panic("failed to provision calling agent: " + err.Error())
		}
		log.Info("calling agent provisioned", "agent_id", agentID)
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
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

	leadsModule := leads.NewModule(pool, eventBus, val)
	callsModule := calls.NewModule(
		pool, leadsModule.Repository(), retellClient, eventBus, log, val,
		callsservice.Config{AgentID: agentID},
		cfg.GetRetellWebhookSecret(),
	)
	campaignsModule := campaigns.NewModule(pool, callsModule.Service(), leadsModule.Repository(), log, val)
	analyticsModule := analytics.NewModule(pool, leadsModule.Repository())

	// Recording archival rides the reconcile event into the task queue; the
	// scheduler worker does the actual download and upload.
	taskClient := initTaskClient(cfg, log)
	if taskClient != nil {
		defer func() { _ = taskClient.Close() }()
		eventBus.Subscribe(events.CallReconciled{}.EventName(),
			events.HandlerFunc(func(ctx context.Context, event events.Event) error {
				reconciled, ok := event.(events.CallReconciled)
				if !ok || reconciled.RecordingURL == "" {
					return nil
				}
				return taskClient.EnqueueArchiveRecording(ctx, scheduler.ArchiveRecordingPayload{
					CallLogID:    reconciled.CallLogID.String(),
					RecordingURL: reconciled.RecordingURL,
				})
			}))
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			leadsModule,
			callsModule,
			campaignsModule,
			analyticsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) *scheduler.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; recording archival disabled")
		return nil
	}

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		return nil
	}
	return taskClient
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
