package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/syncjob"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSyncDrain drains a batch of pending sync jobs toward the platform.
	TaskSyncDrain = "sync:drain"
)

// SyncDrainPayload carries scheduling metadata for a drain run.
type SyncDrainPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSyncDrainTask constructs the drain task enqueued by the scheduler.
func NewSyncDrainTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SyncDrainPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncDrain, body, asynq.Queue(QueueDefault)), nil
}

// NewSyncDrainHandler adapts the queue worker into an Asynq handler. Tick
// errors bubble up so Asynq retries the run; per-job failures are already
// absorbed into the jobs' own retry state.
func NewSyncDrainHandler(worker *syncjob.Worker, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SyncDrainPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		stats, err := worker.Tick(ctx)
		if err != nil {
			logger.Error("sync drain tick", "error", err)
			return err
		}
		logger.Info("sync drain tick",
			"claimed", stats.Claimed,
			"done", stats.Done,
			"failed", stats.Failed,
			"dead", stats.Dead,
			"released", stats.Released,
			"reaped", stats.Reaped,
			"reactivated", stats.Reactivated,
		)
		return nil
	}
}
