package inventory

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, companyID, productID uuid.UUID) (Stock, error)
	SetStockQuantity(ctx context.Context, productID uuid.UUID, quantity float64) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
}
