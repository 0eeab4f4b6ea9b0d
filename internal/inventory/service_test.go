package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/audit"
)

type memoryRepo struct {
	stocks  map[uuid.UUID]Stock
	entries []LedgerEntry
	nextID  int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: make(map[uuid.UUID]Stock)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	result := make([]LedgerEntry, len(r.entries))
	copy(result, r.entries)
	return result, nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, companyID, productID uuid.UUID) (Stock, error) {
	s, ok := tx.repo.stocks[productID]
	if !ok {
		return Stock{}, ErrProductNotFound
	}
	return s, nil
}

func (tx *memoryTx) SetStockQuantity(ctx context.Context, productID uuid.UUID, quantity float64) error {
	s := tx.repo.stocks[productID]
	s.Quantity = quantity
	tx.repo.stocks[productID] = s
	return nil
}

func (tx *memoryTx) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	tx.repo.nextID++
	entry.ID = uuid.New()
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry, nil
}

type memoryAudit struct {
	entries []audit.Entry
}

func (a *memoryAudit) Record(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func seedStock(repo *memoryRepo, companyID uuid.UUID, qty float64) uuid.UUID {
	productID := uuid.New()
	repo.stocks[productID] = Stock{ProductID: productID, CompanyID: companyID, Quantity: qty, TracksStock: true}
	return productID
}

func TestApplyUsageDebitsStock(t *testing.T) {
	repo := newMemoryRepo()
	companyID := uuid.New()
	productID := seedStock(repo, companyID, 10)
	svc := NewService(repo, &memoryAudit{})
	ctx := context.Background()

	result, err := svc.ApplyUsage(ctx, UsageInput{CompanyID: companyID, ProductID: productID, Quantity: 3})
	require.NoError(t, err)
	require.False(t, result.Oversold)
	require.InDelta(t, 10.0, result.Entry.StockBefore, 0.0001)
	require.InDelta(t, 7.0, result.Entry.StockAfter, 0.0001)
	require.InDelta(t, -3.0, result.Entry.QuantityDelta, 0.0001)
	require.InDelta(t, 7.0, repo.stocks[productID].Quantity, 0.0001)
	require.Len(t, repo.entries, 1)
}

func TestApplyUsageAllowsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	auditor := &memoryAudit{}
	companyID := uuid.New()
	productID := seedStock(repo, companyID, 2)
	orderID := uuid.New()
	svc := NewService(repo, auditor)

	result, err := svc.ApplyUsage(context.Background(), UsageInput{
		CompanyID:      companyID,
		ProductID:      productID,
		Quantity:       5,
		ServiceOrderID: &orderID,
		Actor:          "webhook",
	})
	require.NoError(t, err)
	require.True(t, result.Oversold)
	require.InDelta(t, -3.0, result.Entry.StockAfter, 0.0001)
	require.InDelta(t, -3.0, repo.stocks[productID].Quantity, 0.0001)

	require.Len(t, auditor.entries, 1)
	require.Equal(t, "stock.oversell", auditor.entries[0].Action)
	require.Equal(t, productID.String(), auditor.entries[0].EntityID)
}

func TestApplyUsageWritesOneLedgerRowPerCall(t *testing.T) {
	repo := newMemoryRepo()
	companyID := uuid.New()
	productID := seedStock(repo, companyID, 100)
	svc := NewService(repo, &memoryAudit{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.ApplyUsage(ctx, UsageInput{CompanyID: companyID, ProductID: productID, Quantity: 10})
		require.NoError(t, err)
	}
	require.Len(t, repo.entries, 4)
	require.InDelta(t, 60.0, repo.stocks[productID].Quantity, 0.0001)
	require.InDelta(t, 70.0, repo.entries[3].StockBefore, 0.0001)
	require.InDelta(t, 60.0, repo.entries[3].StockAfter, 0.0001)
}

func TestApplyUsageValidation(t *testing.T) {
	repo := newMemoryRepo()
	companyID := uuid.New()
	productID := seedStock(repo, companyID, 10)
	svc := NewService(repo, &memoryAudit{})
	ctx := context.Background()

	_, err := svc.ApplyUsage(ctx, UsageInput{CompanyID: companyID, ProductID: productID, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.ApplyUsage(ctx, UsageInput{CompanyID: companyID, ProductID: uuid.New(), Quantity: 1})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestApplyUsageRejectsUntrackedProducts(t *testing.T) {
	repo := newMemoryRepo()
	companyID := uuid.New()
	productID := uuid.New()
	repo.stocks[productID] = Stock{ProductID: productID, CompanyID: companyID, TracksStock: false}
	svc := NewService(repo, &memoryAudit{})

	_, err := svc.ApplyUsage(context.Background(), UsageInput{CompanyID: companyID, ProductID: productID, Quantity: 1})
	require.ErrorIs(t, err, ErrStockNotTracked)
	require.Empty(t, repo.entries)
}
