package matching

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Store is the persistence contract for snapshot and result rows.
type Store interface {
	ReplaceSnapshot(ctx context.Context, companyID uuid.UUID, candidates []Candidate) (int, error)
	ListCandidates(ctx context.Context, companyID uuid.UUID) ([]Candidate, error)
	CountCandidates(ctx context.Context, companyID uuid.UUID) (int, error)
	ReplaceResults(ctx context.Context, companyID uuid.UUID, results []Result) error
	ListResults(ctx context.Context, companyID uuid.UUID, statuses ...ResultStatus) ([]Result, error)
	CountResultsByStatus(ctx context.Context, companyID uuid.UUID) (map[ResultStatus]int, error)
	SetResultStatus(ctx context.Context, companyID, resultID uuid.UUID, from ResultStatus, to ResultStatus) error
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ReplaceSnapshot swaps the whole candidate set in one transaction so a
// matching run never sees a half-imported snapshot. The position column
// preserves import order for candidate iteration.
func (r *Repository) ReplaceSnapshot(ctx context.Context, companyID uuid.UUID, candidates []Candidate) (int, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM match_candidates WHERE company_id = $1`, companyID); err != nil {
			return err
		}
		for i, c := range candidates {
			_, err := tx.Exec(ctx, `
				INSERT INTO match_candidates (company_id, position, field_id, name, document, location_name,
					postal_code, street, number, complement, neighborhood, city, state,
					full_address, latitude, longitude, raw_data)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
				companyID, i, c.FieldID, c.Name, c.Document, c.LocationName,
				c.PostalCode, c.Street, c.Number, c.Complement, c.Neighborhood, c.City, c.State,
				c.FullAddress, c.Latitude, c.Longitude, c.Raw)
			if err != nil {
				return fmt.Errorf("matching: insert candidate %s: %w", c.FieldID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(candidates), nil
}

func (r *Repository) ListCandidates(ctx context.Context, companyID uuid.UUID) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT company_id, field_id, name, document, location_name, postal_code,
			street, number, complement, neighborhood, city, state, full_address,
			latitude, longitude, raw_data
		FROM match_candidates
		WHERE company_id = $1
		ORDER BY position`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var (
			c        Candidate
			lat, lng pgtype.Float8
		)
		err := rows.Scan(
			&c.CompanyID, &c.FieldID, &c.Name, &c.Document, &c.LocationName, &c.PostalCode,
			&c.Street, &c.Number, &c.Complement, &c.Neighborhood, &c.City, &c.State,
			&c.FullAddress, &lat, &lng, &c.Raw,
		)
		if err != nil {
			return nil, err
		}
		if lat.Valid {
			c.Latitude = &lat.Float64
		}
		if lng.Valid {
			c.Longitude = &lng.Float64
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *Repository) CountCandidates(ctx context.Context, companyID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM match_candidates WHERE company_id = $1`, companyID,
	).Scan(&count)
	return count, err
}

// ReplaceResults deletes the prior run's rows before inserting the new ones;
// only the latest run is ever visible.
func (r *Repository) ReplaceResults(ctx context.Context, companyID uuid.UUID, results []Result) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM match_results WHERE company_id = $1`, companyID); err != nil {
			return err
		}
		for _, res := range results {
			_, err := tx.Exec(ctx, `
				INSERT INTO match_results (company_id, customer_id, customer_name,
					candidate_id, candidate_name, score, reason, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				companyID, res.CustomerID, res.CustomerName,
				res.CandidateID, res.CandidateName, res.Score, res.Reason, res.Status)
			if err != nil {
				return fmt.Errorf("matching: insert result for customer %s: %w", res.CustomerID, err)
			}
		}
		return nil
	})
}

func (r *Repository) ListResults(ctx context.Context, companyID uuid.UUID, statuses ...ResultStatus) ([]Result, error) {
	query := `
		SELECT id, company_id, customer_id, customer_name, candidate_id, candidate_name,
			score, reason, status, created_at
		FROM match_results
		WHERE company_id = $1`
	args := []any{companyID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		list := make([]string, len(statuses))
		for i, s := range statuses {
			list[i] = string(s)
		}
		args = append(args, list)
	}
	query += ` ORDER BY score DESC, customer_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			res           Result
			candidateID   pgtype.Text
			candidateName pgtype.Text
		)
		err := rows.Scan(
			&res.ID, &res.CompanyID, &res.CustomerID, &res.CustomerName,
			&candidateID, &candidateName, &res.Score, &res.Reason, &res.Status, &res.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if candidateID.Valid {
			res.CandidateID = &candidateID.String
		}
		if candidateName.Valid {
			res.CandidateName = &candidateName.String
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *Repository) CountResultsByStatus(ctx context.Context, companyID uuid.UUID) (map[ResultStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM match_results
		WHERE company_id = $1
		GROUP BY status`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[ResultStatus]int)
	for rows.Next() {
		var (
			status ResultStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// SetResultStatus moves a result between statuses, guarded on the expected
// current status so a decided row cannot be re-decided.
func (r *Repository) SetResultStatus(ctx context.Context, companyID, resultID uuid.UUID, from, to ResultStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE match_results
		SET status = $4, updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND status = $3`,
		companyID, resultID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrResultNotFound
	}
	return nil
}
