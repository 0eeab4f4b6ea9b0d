package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const ledgerColumns = `id, company_id, product_id, service_order_id, quantity_delta,
stock_before, stock_after, reference, note, created_at`

func (r *Repository) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM stock_ledger
		WHERE company_id = $1
		  AND ($2::uuid IS NULL OR product_id = $2)
		  AND ($3::uuid IS NULL OR service_order_id = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`,
		filter.CompanyID, filter.ProductID, filter.ServiceOrderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanLedgerEntry(row pgx.Row) (LedgerEntry, error) {
	var (
		e       LedgerEntry
		orderID pgtype.UUID
	)
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.ProductID, &orderID, &e.QuantityDelta,
		&e.StockBefore, &e.StockAfter, &e.Reference, &e.Note, &e.CreatedAt,
	)
	if err != nil {
		return LedgerEntry{}, err
	}
	if orderID.Valid {
		id := uuid.UUID(orderID.Bytes)
		e.ServiceOrderID = &id
	}
	return e, nil
}

func (r *txRepo) GetStockForUpdate(ctx context.Context, companyID, productID uuid.UUID) (Stock, error) {
	var s Stock
	err := r.tx.QueryRow(ctx, `
		SELECT id, company_id, quantity, tracks_stock
		FROM products
		WHERE company_id = $1 AND id = $2
		FOR UPDATE`,
		companyID, productID,
	).Scan(&s.ProductID, &s.CompanyID, &s.Quantity, &s.TracksStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, ErrProductNotFound
	}
	if err != nil {
		return Stock{}, err
	}
	return s, nil
}

func (r *txRepo) SetStockQuantity(ctx context.Context, productID uuid.UUID, quantity float64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE products SET quantity = $2, updated_at = NOW() WHERE id = $1`,
		productID, quantity)
	return err
}

func (r *txRepo) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	err := r.tx.QueryRow(ctx, `
		INSERT INTO stock_ledger (company_id, product_id, service_order_id, quantity_delta,
			stock_before, stock_after, reference, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		entry.CompanyID, entry.ProductID, entry.ServiceOrderID, entry.QuantityDelta,
		entry.StockBefore, entry.StockAfter, entry.Reference, entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}
