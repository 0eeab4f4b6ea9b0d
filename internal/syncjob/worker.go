package syncjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// WorkerConfig bounds one drain pass.
type WorkerConfig struct {
	BatchSize  int
	TickBudget time.Duration
	CallDelay  time.Duration
	Backoff    []time.Duration
	StuckAfter time.Duration
}

// TickStats summarizes one drain pass.
type TickStats struct {
	Reaped      int
	Claimed     int
	Done        int
	Failed      int
	Dead        int
	Released    int
	Reactivated int
}

// Worker drains the queue sequentially: reap stuck claims, claim a batch,
// dispatch each job to its handler with a pause between platform calls, and
// release whatever the wall-clock budget did not reach.
type Worker struct {
	store    Store
	entities EntityStore
	handlers map[EntityType]Handler
	cfg      WorkerConfig
	log      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewWorker constructs Worker.
func NewWorker(store Store, entities EntityStore, handlers map[EntityType]Handler, cfg WorkerConfig, log *slog.Logger) *Worker {
	return &Worker{
		store:    store,
		entities: entities,
		handlers: handlers,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Tick runs one drain pass.
func (w *Worker) Tick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	reaped, err := w.store.ReapStuck(ctx, w.cfg.StuckAfter)
	if err != nil {
		return stats, err
	}
	stats.Reaped = reaped
	if reaped > 0 {
		w.log.Warn("requeued stuck sync jobs", "count", reaped)
	}

	deadline := w.now().Add(w.cfg.TickBudget)

	jobs, err := w.store.Claim(ctx, w.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(jobs)
	if len(jobs) == 0 {
		return stats, nil
	}

	for i, job := range jobs {
		if w.now().After(deadline) || ctx.Err() != nil {
			remaining := jobIDs(jobs[i:])
			if err := w.store.Release(ctx, remaining); err != nil {
				w.log.Error("release unprocessed sync jobs", "error", err, "count", len(remaining))
			}
			stats.Released = len(remaining)
			w.log.Info("drain budget exhausted", "released", len(remaining))
			break
		}
		if i > 0 {
			w.sleep(ctx, w.cfg.CallDelay)
		}
		w.processOne(ctx, job, &stats)
	}

	w.log.Info("sync drain pass",
		"claimed", stats.Claimed, "done", stats.Done, "failed", stats.Failed,
		"dead", stats.Dead, "released", stats.Released, "reactivated", stats.Reactivated)
	return stats, nil
}

func (w *Worker) processOne(ctx context.Context, job Job, stats *TickStats) {
	handler, ok := w.handlers[job.EntityType]
	if !ok {
		w.killJob(ctx, job, ErrUnknownEntityType, stats)
		return
	}

	outcome, err := handler.Process(ctx, job)
	if err == nil {
		if err := w.store.MarkDone(ctx, job.ID); err != nil {
			w.log.Error("mark sync job done", "job_id", job.ID, "error", err)
			return
		}
		stats.Done++
		if job.EntityType == EntityCustomer && outcome.ExternalID != "" {
			n, err := w.store.ReactivateDependents(ctx, job.CompanyID, job.EntityID, outcome.ExternalID)
			if err != nil {
				w.log.Error("reactivate dependent sync jobs", "customer_id", job.EntityID, "error", err)
			} else if n > 0 {
				stats.Reactivated += n
				w.log.Info("reactivated dependent sync jobs", "customer_id", job.EntityID, "count", n)
			}
		}
		return
	}

	if IsPermanent(err) {
		w.killJob(ctx, job, err, stats)
		return
	}

	landed, markErr := w.store.MarkFailed(ctx, job, err, w.cfg.Backoff)
	if markErr != nil {
		w.log.Error("mark sync job failed", "job_id", job.ID, "error", markErr)
		return
	}
	w.mirrorError(ctx, job, err)
	if landed == StatusDead {
		stats.Dead++
		w.log.Error("sync job dead-lettered after retries", "job_id", job.ID,
			"entity_type", job.EntityType, "entity_id", job.EntityID, "error", err)
		return
	}
	stats.Failed++
	w.log.Warn("sync job failed, will retry", "job_id", job.ID,
		"entity_type", job.EntityType, "entity_id", job.EntityID,
		"attempt", job.Attempts+1, "error", err)
}

// killJob dead-letters immediately, bypassing the retry budget.
func (w *Worker) killJob(ctx context.Context, job Job, cause error, stats *TickStats) {
	if err := w.store.MarkDead(ctx, job, cause); err != nil {
		w.log.Error("dead-letter sync job", "job_id", job.ID, "error", err)
		return
	}
	w.mirrorError(ctx, job, cause)
	stats.Dead++
	w.log.Error("sync job dead-lettered", "job_id", job.ID,
		"entity_type", job.EntityType, "entity_id", job.EntityID, "error", cause)
}

// mirrorError stamps the failure onto the entity so operators see sync state
// without reading the queue.
func (w *Worker) mirrorError(ctx context.Context, job Job, cause error) {
	var err error
	switch job.EntityType {
	case EntityCustomer:
		err = w.entities.MarkCustomerSyncError(ctx, job.EntityID, cause.Error())
	case EntityEquipment:
		err = w.entities.MarkEquipmentSyncError(ctx, job.EntityID, cause.Error())
	case EntityServiceOrder:
		err = w.entities.MarkOrderSyncError(ctx, job.EntityID, cause.Error())
	default:
		return
	}
	if err != nil {
		w.log.Error("mirror sync error onto entity", "job_id", job.ID, "error", err)
	}
}

func jobIDs(jobs []Job) []uuid.UUID {
	ids := make([]uuid.UUID, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}
