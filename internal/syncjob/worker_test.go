package syncjob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testWorker(q *memQueue, entities *memEntities, handlers map[EntityType]Handler) *Worker {
	w := NewWorker(q, entities, handlers, WorkerConfig{
		BatchSize:  10,
		TickBudget: 25 * time.Second,
		StuckAfter: 5 * time.Minute,
		Backoff:    []time.Duration{time.Minute},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.sleep = func(context.Context, time.Duration) {}
	return w
}

func TestWorkerMarksDoneAndReactivatesDependents(t *testing.T) {
	customerID := uuid.New()
	job := Job{ID: uuid.New(), CompanyID: uuid.New(), EntityType: EntityCustomer, EntityID: customerID}
	q := newMemQueue(job)
	handlers := map[EntityType]Handler{
		EntityCustomer: handlerFunc(func(context.Context, Job) (Outcome, error) {
			return Outcome{ExternalID: "plat-1"}, nil
		}),
	}

	stats, err := testWorker(q, newMemEntities(), handlers).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Done)
	require.Equal(t, 1, stats.Reactivated)
	require.Equal(t, []uuid.UUID{job.ID}, q.done)
	require.Equal(t, "plat-1", q.reactivated[customerID])
}

func TestWorkerDoesNotReactivateForNonCustomerJobs(t *testing.T) {
	job := Job{ID: uuid.New(), EntityType: EntityEquipment, EntityID: uuid.New()}
	q := newMemQueue(job)
	handlers := map[EntityType]Handler{
		EntityEquipment: handlerFunc(func(context.Context, Job) (Outcome, error) {
			return Outcome{ExternalID: "plat-2"}, nil
		}),
	}

	stats, err := testWorker(q, newMemEntities(), handlers).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Done)
	require.Zero(t, stats.Reactivated)
	require.Empty(t, q.reactivated)
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	job := Job{ID: uuid.New(), EntityType: EntityCustomer, EntityID: uuid.New()}
	q := newMemQueue(job)
	entities := newMemEntities()
	handlers := map[EntityType]Handler{
		EntityCustomer: handlerFunc(func(context.Context, Job) (Outcome, error) {
			return Outcome{}, errors.New("platform timeout")
		}),
	}

	stats, err := testWorker(q, entities, handlers).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Zero(t, stats.Dead)
	require.Equal(t, []uuid.UUID{job.ID}, q.failed)
	require.Equal(t, "platform timeout", entities.syncErrors[job.EntityID])
}

func TestWorkerDeadLettersPermanentFailures(t *testing.T) {
	job := Job{ID: uuid.New(), EntityType: EntityCustomer, EntityID: uuid.New()}
	q := newMemQueue(job)
	entities := newMemEntities()
	handlers := map[EntityType]Handler{
		EntityCustomer: handlerFunc(func(context.Context, Job) (Outcome, error) {
			return Outcome{}, Permanentf("invalid payload")
		}),
	}

	stats, err := testWorker(q, entities, handlers).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Dead)
	require.Zero(t, stats.Failed)
	require.Equal(t, []uuid.UUID{job.ID}, q.dead)
	require.Empty(t, q.failed)
	require.Equal(t, "invalid payload", entities.syncErrors[job.EntityID])
}

func TestWorkerCountsExhaustedRetriesAsDead(t *testing.T) {
	job := Job{ID: uuid.New(), EntityType: EntityCustomer, EntityID: uuid.New(), Attempts: 4, MaxAttempts: 5}
	q := newMemQueue(job)
	q.failLandsOn = StatusDead
	handlers := map[EntityType]Handler{
		EntityCustomer: handlerFunc(func(context.Context, Job) (Outcome, error) {
			return Outcome{}, errors.New("still down")
		}),
	}

	stats, err := testWorker(q, newMemEntities(), handlers).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Dead)
	require.Zero(t, stats.Failed)
}

func TestWorkerDeadLettersUnknownEntityType(t *testing.T) {
	job := Job{ID: uuid.New(), EntityType: EntityType("invoice"), EntityID: uuid.New()}
	q := newMemQueue(job)

	stats, err := testWorker(q, newMemEntities(), map[EntityType]Handler{}).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Dead)
	require.Equal(t, []uuid.UUID{job.ID}, q.dead)
}

func TestWorkerReleasesClaimsBeyondBudget(t *testing.T) {
	jobs := []Job{
		{ID: uuid.New(), EntityType: EntityCustomer, EntityID: uuid.New()},
		{ID: uuid.New(), EntityType: EntityCustomer, EntityID: uuid.New()},
		{ID: uuid.New(), EntityType: EntityCustomer, EntityID: uuid.New()},
	}
	q := newMemQueue(jobs...)
	handlers := map[EntityType]Handler{
		EntityCustomer: handlerFunc(func(context.Context, Job) (Outcome, error) {
			return Outcome{ExternalID: "x"}, nil
		}),
	}
	w := testWorker(q, newMemEntities(), handlers)

	base := time.Now()
	clock := []time.Time{
		base,                       // deadline anchor
		base,                       // job 1 check
		base.Add(30 * time.Second), // job 2 check, past budget
	}
	w.now = func() time.Time {
		next := clock[0]
		if len(clock) > 1 {
			clock = clock[1:]
		}
		return next
	}

	stats, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Done)
	require.Equal(t, 2, stats.Released)
	require.ElementsMatch(t, []uuid.UUID{jobs[1].ID, jobs[2].ID}, q.released)
}

func TestWorkerEmptyQueueIsQuiet(t *testing.T) {
	q := newMemQueue()
	stats, err := testWorker(q, newMemEntities(), map[EntityType]Handler{}).Tick(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Claimed)
	require.Empty(t, q.done)
}
