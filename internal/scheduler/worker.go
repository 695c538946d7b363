package scheduler

import (
	"context"
	"fmt"
	"time"

	"aileadgen_backend/platform/config"
	"aileadgen_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// CallSweeper finalizes stuck pending call logs.
type CallSweeper interface {
	SweepStuck(ctx context.Context, maxAge time.Duration) (int, error)
}

// CampaignTicker advances running campaigns.
type CampaignTicker interface {
	TickRunning(ctx context.Context) error
}

// Archiver copies a recording into object storage.
type Archiver interface {
	Archive(ctx context.Context, callLogID, recordingURL string) (string, error)
}

// Worker runs the background task handlers.
type Worker struct {
	server         *asynq.Server
	mux            *asynq.ServeMux
	sweeper        CallSweeper
	ticker         CampaignTicker
	archiver       Archiver
	pendingTimeout time.Duration
	log            *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper CallSweeper, ticker CampaignTicker, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	pendingTimeout := cfg.GetCallPendingTimeout()
	if pendingTimeout < time.Minute {
		pendingTimeout = 30 * time.Minute
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:         server,
		mux:            mux,
		sweeper:        sweeper,
		ticker:         ticker,
		pendingTimeout: pendingTimeout,
		log:            log,
	}

	mux.HandleFunc(TaskCallSweep, w.handleCallSweep)
	mux.HandleFunc(TaskCampaignDialTick, w.handleCampaignDialTick)
	mux.HandleFunc(TaskArchiveRecording, w.handleArchiveRecording)

	return w, nil
}

// SetArchiver wires the recording archiver. Without one, archive tasks are
// acknowledged and dropped.
func (w *Worker) SetArchiver(archiver Archiver) {
	w.archiver = archiver
}

func (w *Worker) handleCallSweep(ctx context.Context, _ *asynq.Task) error {
	swept, err := w.sweeper.SweepStuck(ctx, w.pendingTimeout)
	if err != nil {
		return err
	}
	if swept > 0 {
		w.log.Info("stuck pending calls swept", "count", swept)
	}
	return nil
}

func (w *Worker) handleCampaignDialTick(ctx context.Context, _ *asynq.Task) error {
	return w.ticker.TickRunning(ctx)
}

func (w *Worker) handleArchiveRecording(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseArchiveRecordingPayload(task)
	if err != nil {
		return err
	}
	if w.archiver == nil {
		w.log.Info("recording archival skipped, storage disabled",
			"call_log_id", payload.CallLogID)
		return nil
	}

	if _, err := w.archiver.Archive(ctx, payload.CallLogID, payload.RecordingURL); err != nil {
		return fmt.Errorf("archive recording for call log %s: %w", payload.CallLogID, err)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
