package syncjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence contract the worker runs against.
type Store interface {
	Enqueue(ctx context.Context, input EnqueueInput) (*Job, error)
	Claim(ctx context.Context, limit int) ([]Job, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, job Job, cause error, backoff []time.Duration) (Status, error)
	MarkDead(ctx context.Context, job Job, cause error) error
	Release(ctx context.Context, ids []uuid.UUID) error
	ReapStuck(ctx context.Context, olderThan time.Duration) (int, error)
	ReactivateDependents(ctx context.Context, companyID, customerID uuid.UUID, externalID string) (int, error)
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `id, company_id, entity_type, entity_id, action, payload, status,
attempts, max_attempts, next_retry_at, last_error, processing_started_at, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var lastError pgtype.Text
	var processingStartedAt pgtype.Timestamptz
	err := row.Scan(
		&j.ID, &j.CompanyID, &j.EntityType, &j.EntityID, &j.Action, &j.Payload, &j.Status,
		&j.Attempts, &j.MaxAttempts, &j.NextRetryAt, &lastError, &processingStartedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	if processingStartedAt.Valid {
		j.ProcessingStartedAt = &processingStartedAt.Time
	}
	return &j, nil
}

// Enqueue inserts a pending job due immediately.
func (r *Repository) Enqueue(ctx context.Context, input EnqueueInput) (*Job, error) {
	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return nil, fmt.Errorf("syncjob: encode payload: %w", err)
	}
	maxAttempts := input.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO sync_jobs
(id, company_id, entity_type, entity_id, action, payload, status, attempts, max_attempts, next_retry_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,NOW(),NOW(),NOW())
RETURNING `+jobColumns,
		uuid.New(), input.CompanyID, input.EntityType, input.EntityID, input.Action,
		payload, StatusPending, maxAttempts)
	return scanJob(row)
}

// Claim atomically flips up to limit due jobs from pending/error to
// processing and returns them, oldest first. The conditional update plus
// SKIP LOCKED makes overlapping worker invocations safe: a job is only ever
// claimed by one of them, and done/dead jobs are never touched.
func (r *Repository) Claim(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `UPDATE sync_jobs SET
status=$1, processing_started_at=NOW(), updated_at=NOW()
WHERE id IN (
  SELECT id FROM sync_jobs
  WHERE status IN ($2,$3) AND next_retry_at <= NOW()
  ORDER BY created_at ASC
  LIMIT $4
  FOR UPDATE SKIP LOCKED
)
RETURNING `+jobColumns, StatusProcessing, StatusPending, StatusError, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// MarkDone finishes a job successfully and clears its last error.
func (r *Repository) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE sync_jobs SET
status=$2, last_error=NULL, processing_started_at=NULL, updated_at=NOW()
WHERE id=$1 AND status=$3`, id, StatusDone, StatusProcessing)
	return err
}

// MarkFailed records a failed attempt: the job either becomes dead when the
// retry budget is exhausted or error with the next retry scheduled from the
// backoff table. Returns the status the job landed in.
func (r *Repository) MarkFailed(ctx context.Context, job Job, cause error, backoff []time.Duration) (Status, error) {
	attempts := job.Attempts + 1
	status := StatusError
	nextRetry := time.Now().Add(BackoffFor(backoff, attempts))
	if attempts >= job.MaxAttempts {
		status = StatusDead
	}
	_, err := r.pool.Exec(ctx, `UPDATE sync_jobs SET
status=$2, attempts=$3, last_error=$4, next_retry_at=$5, processing_started_at=NULL, updated_at=NOW()
WHERE id=$1 AND status=$6`,
		job.ID, status, attempts, truncateError(cause), nextRetry, StatusProcessing)
	return status, err
}

// MarkDead dead-letters a job immediately, bypassing remaining retries. Used
// for permanent failures such as payload validation errors.
func (r *Repository) MarkDead(ctx context.Context, job Job, cause error) error {
	_, err := r.pool.Exec(ctx, `UPDATE sync_jobs SET
status=$2, attempts=attempts+1, last_error=$3, processing_started_at=NULL, updated_at=NOW()
WHERE id=$1 AND status=$4`, job.ID, StatusDead, truncateError(cause), StatusProcessing)
	return err
}

// Release puts claimed-but-unprocessed jobs back to pending, preserving their
// attempt count. Called when a tick runs out of wall-clock budget.
func (r *Repository) Release(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE sync_jobs SET
status=$1, processing_started_at=NULL, updated_at=NOW()
WHERE id = ANY($2) AND status=$3`, StatusPending, ids, StatusProcessing)
	return err
}

// ReapStuck releases jobs abandoned in processing, e.g. after a crashed
// worker invocation.
func (r *Repository) ReapStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sync_jobs SET
status=$1, processing_started_at=NULL, updated_at=NOW()
WHERE status=$2 AND processing_started_at < NOW() - make_interval(secs => $3)`,
		StatusPending, StatusProcessing, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ReactivateDependents short-circuits the retry wait for equipment and
// service-order jobs blocked on the given customer: their payload is patched
// with the fresh external customer id and next_retry_at reset to now.
func (r *Repository) ReactivateDependents(ctx context.Context, companyID, customerID uuid.UUID, externalID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sync_jobs SET
payload = jsonb_set(payload, '{external_customer_id}', to_jsonb($3::text)),
next_retry_at = NOW(), updated_at = NOW()
WHERE company_id=$1 AND entity_type IN ($4,$5) AND status IN ($6,$7)
AND payload->>'customer_id' = $2::text`,
		companyID, customerID, externalID,
		EntityEquipment, EntityServiceOrder, StatusPending, StatusError)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	return msg
}
