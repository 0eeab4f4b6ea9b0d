// Package erp exposes the slice of the ERP's relational store the sync engine
// reads and writes: customers, equipment, service orders, products, and the
// external-link columns stamped onto each syncable entity.
package erp

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sync status values stored on syncable entities.
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusError   = "error"
)

// Customer is an ERP customer enriched with its external link.
type Customer struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	LegalName    string
	TradeName    string
	Document     string
	Email        string
	Phone        string
	Street       string
	Number       string
	Neighborhood string
	Complement   string
	City         string
	State        string
	PostalCode   string
	Latitude     float64
	Longitude    float64
	IsActive     bool

	ExternalID    *string
	SyncStatus    string
	SyncError     *string
	SyncUpdatedAt *time.Time
}

// DisplayName prefers the trade name, falling back to the legal name.
func (c Customer) DisplayName() string {
	if c.TradeName != "" {
		return c.TradeName
	}
	return c.LegalName
}

// Equipment is a customer-owned unit tracked on both sides.
type Equipment struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	CustomerID   uuid.UUID
	SerialNumber string
	Brand        string
	Model        string
	Type         string

	ExternalID    *string
	SyncStatus    string
	SyncError     *string
	SyncUpdatedAt *time.Time
}

// ServiceOrder is a unit of field work dispatched to the platform.
type ServiceOrder struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	CustomerID    uuid.UUID
	OrderNumber   int64
	ScheduledDate string
	ScheduledTime string
	ReportedIssue string
	StatusID      *uuid.UUID
	StartedAt     *time.Time
	CompletedAt   *time.Time

	ExternalTaskID *string
	SyncStatus     string
	SyncError      *string
	SyncUpdatedAt  *time.Time
}

// OrderStatus is one entry of the company's configurable status list.
type OrderStatus struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
}

// Product is an inventory item; Quantity is the ERP's authoritative stock
// level, only meaningful when TracksStock is set.
type Product struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Code        string
	Name        string
	Quantity    float64
	TracksStock bool
}

// Link is a persisted ERP-id to external-id mapping, used by the matching
// engine for customers linked outside the regular propagation path.
type Link struct {
	CompanyID  uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	ExternalID string
	LinkedAt   time.Time
}

// ErrNotFound indicates a missing row.
var ErrNotFound = errors.New("erp: record not found")
