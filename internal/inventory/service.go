package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/audit"
)

// Service coordinates stock movements.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
}

// NewService builds Service.
func NewService(repo RepositoryPort, auditor audit.Recorder) *Service {
	return &Service{repo: repo, audit: auditor}
}

// ApplyUsage debits the product's stock by the reported quantity inside one
// transaction. The debit always lands, even past zero; an oversell is
// flagged on the result and recorded in the audit trail, never blocked.
func (s *Service) ApplyUsage(ctx context.Context, input UsageInput) (UsageResult, error) {
	if input.CompanyID == uuid.Nil || input.ProductID == uuid.Nil {
		return UsageResult{}, fmt.Errorf("inventory: company and product required")
	}
	if input.Quantity <= 0 {
		return UsageResult{}, ErrInvalidQuantity
	}

	var result UsageResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, input.CompanyID, input.ProductID)
		if err != nil {
			return err
		}
		if !stock.TracksStock {
			return ErrStockNotTracked
		}

		before := stock.Quantity
		after := before - input.Quantity
		if err := tx.SetStockQuantity(ctx, input.ProductID, after); err != nil {
			return err
		}

		entry, err := tx.InsertLedgerEntry(ctx, LedgerEntry{
			CompanyID:      input.CompanyID,
			ProductID:      input.ProductID,
			ServiceOrderID: input.ServiceOrderID,
			QuantityDelta:  -input.Quantity,
			StockBefore:    before,
			StockAfter:     after,
			Reference:      input.Reference,
			Note:           input.Note,
		})
		if err != nil {
			return err
		}
		result = UsageResult{Entry: entry, Oversold: after < 0}
		return nil
	})
	if err != nil {
		return UsageResult{}, err
	}

	if result.Oversold && s.audit != nil {
		meta := map[string]any{
			"quantity":     input.Quantity,
			"stock_before": result.Entry.StockBefore,
			"stock_after":  result.Entry.StockAfter,
			"reference":    input.Reference,
		}
		if input.ServiceOrderID != nil {
			meta["service_order_id"] = input.ServiceOrderID.String()
		}
		if err := s.audit.Record(ctx, audit.Entry{
			CompanyID: input.CompanyID,
			Actor:     input.Actor,
			Action:    "stock.oversell",
			Entity:    "product",
			EntityID:  input.ProductID.String(),
			Meta:      meta,
		}); err != nil {
			return result, fmt.Errorf("inventory: record oversell audit: %w", err)
		}
	}
	return result, nil
}

// Ledger reads back ledger entries, newest first.
func (s *Service) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	return s.repo.Ledger(ctx, filter)
}
