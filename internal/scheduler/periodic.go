package scheduler

import (
	"context"
	"fmt"
	"time"

	"aileadgen_backend/platform/config"
	"aileadgen_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the recurring pipeline tasks: the stuck-pending sweep and
// the campaign dial tick.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	dialInterval := cfg.GetCampaignDialInterval()
	if dialInterval < time.Second {
		dialInterval = 30 * time.Second
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	if _, err := scheduler.Register(
		"@every 5m", NewCallSweepTask(), asynq.Queue(queue),
	); err != nil {
		return nil, fmt.Errorf("register sweep task: %w", err)
	}
	if _, err := scheduler.Register(
		fmt.Sprintf("@every %s", dialInterval), NewCampaignDialTickTask(), asynq.Queue(queue),
	); err != nil {
		return nil, fmt.Errorf("register dial tick task: %w", err)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
