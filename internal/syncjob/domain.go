// Package syncjob implements the durable propagation queue between the ERP
// and the field-service execution platform: a persisted job table, a
// scheduled sequential worker with retry/backoff and dead-lettering, and one
// handler per syncable entity type.
package syncjob

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the job lifecycle. done and dead are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
	StatusDone       Status = "done"
	StatusDead       Status = "dead"
)

// EntityType enumerates syncable ERP entities.
type EntityType string

const (
	EntityCustomer     EntityType = "customer"
	EntityEquipment    EntityType = "equipment"
	EntityServiceOrder EntityType = "service_order"
)

// Actions describing why the job was enqueued.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// Job is one row of the sync queue.
type Job struct {
	ID                  uuid.UUID
	CompanyID           uuid.UUID
	EntityType          EntityType
	EntityID            uuid.UUID
	Action              string
	Payload             json.RawMessage
	Status              Status
	Attempts            int
	MaxAttempts         int
	NextRetryAt         time.Time
	LastError           *string
	ProcessingStartedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EnqueueInput describes a new propagation job.
type EnqueueInput struct {
	CompanyID   uuid.UUID
	EntityType  EntityType
	EntityID    uuid.UUID
	Action      string
	Payload     any
	MaxAttempts int
}

// ErrUnknownEntityType is returned when a job references an entity type
// without a registered handler.
var ErrUnknownEntityType = errors.New("syncjob: unsupported entity type")

// ErrCustomerNotSynced is a retryable failure raised by dependent jobs whose
// owning customer has no external id yet. The job stays queued until the
// customer lands and reactivation patches its payload.
var ErrCustomerNotSynced = errors.New("syncjob: customer not yet synced")

// permanentError wraps failures that retrying cannot fix, such as payload
// validation errors. The worker dead-letters these on first sight instead of
// burning the whole retry budget on them.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Permanentf is Permanent over a formatted error.
func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

// IsPermanent reports whether err was marked non-retryable.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// BackoffFor returns the delay before retry number attempt (1-based) given a
// fixed ascending schedule; attempts beyond the schedule clamp to its last
// entry.
func BackoffFor(schedule []time.Duration, attempt int) time.Duration {
	if len(schedule) == 0 || attempt < 1 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}
