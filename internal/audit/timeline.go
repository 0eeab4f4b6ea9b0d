package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TimelineRow is one audit event rendered for the timeline.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// TimelineFilters narrows the timeline query.
type TimelineFilters struct {
	CompanyID uuid.UUID
	From      time.Time
	To        time.Time
	Actor     string
	Entity    string
	Action    string
	Page      int
	PageSize  int
}

// PagingInfo carries cursorless page navigation.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page with its paging info.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// TimelineRepository is the read side the timeline service runs against.
type TimelineRepository interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

// Service coordinates timeline reads.
type Service struct {
	repo TimelineRepository
}

// NewService builds Service.
func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page, over-reading by one row to detect a next page.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Repository is the PostgreSQL TimelineRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	add("company_id = $%d", filters.CompanyID)
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if v := strings.TrimSpace(filters.Actor); v != "" {
		add("actor = $%d", v)
	}
	if v := strings.TrimSpace(filters.Entity); v != "" {
		add("entity = $%d", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("action = $%d", v)
	}
	args = append(args, offset, limit)

	query := fmt.Sprintf(`
		SELECT occurred_at, actor, action, entity, entity_id, meta
		FROM audit_logs
		WHERE %s
		ORDER BY occurred_at DESC, entity_id DESC
		OFFSET $%d LIMIT $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
			at   pgtype.Timestamptz
		)
		if err := rows.Scan(&at, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if at.Valid {
			row.At = at.Time
		}
		if len(meta) > 0 {
			m := make(map[string]any)
			if err := json.Unmarshal(meta, &m); err == nil {
				row.Meta = m
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
