// Package inventory maintains product stock levels and the immutable ledger
// behind them. Field usage debits stock unconditionally: the quantity may go
// negative, and every movement leaves exactly one ledger row recording the
// balance before and after.
package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one immutable row of the stock ledger.
type LedgerEntry struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	ProductID      uuid.UUID
	ServiceOrderID *uuid.UUID
	QuantityDelta  float64
	StockBefore    float64
	StockAfter     float64
	Reference      string
	Note           string
	CreatedAt      time.Time
}

// Stock is a product's lockable balance.
type Stock struct {
	ProductID   uuid.UUID
	CompanyID   uuid.UUID
	Quantity    float64
	TracksStock bool
}

// UsageInput describes a field-reported material consumption.
type UsageInput struct {
	CompanyID      uuid.UUID
	ProductID      uuid.UUID
	Quantity       float64
	ServiceOrderID *uuid.UUID
	Reference      string
	Note           string
	Actor          string
}

// UsageResult reports the applied debit. Oversold is set when the balance
// went negative; the debit still lands.
type UsageResult struct {
	Entry    LedgerEntry
	Oversold bool
}

// LedgerFilter narrows ledger reads.
type LedgerFilter struct {
	CompanyID      uuid.UUID
	ProductID      *uuid.UUID
	ServiceOrderID *uuid.UUID
	Limit          int
}

var (
	// ErrInvalidQuantity rejects non-positive usage quantities.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrProductNotFound indicates the product row is missing.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrStockNotTracked indicates the product does not carry a stock level.
	ErrStockNotTracked = errors.New("inventory: product does not track stock")
)
