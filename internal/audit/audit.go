// Package audit persists append-only operational events: every webhook
// decision, stock movement, and matching verdict leaves one row here, queried
// back through a paged timeline.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a record stored in audit_logs.
type Entry struct {
	CompanyID uuid.UUID
	Actor     string
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
	At        time.Time
}

// Recorder is the write side of the audit trail.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Logger writes records into audit_logs.
type Logger struct {
	pool *pgxpool.Pool
}

// NewLogger returns a new Logger.
func NewLogger(pool *pgxpool.Pool) *Logger {
	return &Logger{pool: pool}
}

// Record persists the entry. Rows are never updated or deleted.
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO audit_logs (company_id, actor, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7::timestamptz, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`,
		entry.CompanyID, entry.Actor, entry.Action, entry.Entity, entry.EntityID, metaJSON, entry.At)
	return err
}
