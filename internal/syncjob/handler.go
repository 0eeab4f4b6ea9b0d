package syncjob

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/field"
)

// FieldAPI is the subset of the platform client the handlers use.
type FieldAPI interface {
	CreateCustomer(ctx context.Context, payload field.CustomerPayload) (*field.Record, error)
	UpdateCustomer(ctx context.Context, id string, payload field.CustomerPayload) error
	FindCustomerByExternalID(ctx context.Context, externalID string) (*field.Record, error)
	FindCustomerByDocument(ctx context.Context, document string) (*field.Record, error)
	CreateEquipment(ctx context.Context, payload field.EquipmentPayload) (*field.Record, error)
	UpdateEquipment(ctx context.Context, id string, payload field.EquipmentPayload) error
	FindEquipmentByExternalID(ctx context.Context, externalID string) (*field.Record, error)
	CreateTask(ctx context.Context, payload field.TaskPayload) (*field.Record, error)
	UpdateTask(ctx context.Context, id string, payload field.TaskPayload) error
	FindTaskByExternalID(ctx context.Context, externalID string) (*field.Record, error)
}

// EntityStore is the slice of the ERP store the handlers read and stamp.
type EntityStore interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*erp.Customer, error)
	SetCustomerExternalLink(ctx context.Context, id uuid.UUID, externalID string) error
	MarkCustomerSyncError(ctx context.Context, id uuid.UUID, message string) error
	GetEquipment(ctx context.Context, id uuid.UUID) (*erp.Equipment, error)
	SetEquipmentExternalLink(ctx context.Context, id uuid.UUID, externalID string) error
	MarkEquipmentSyncError(ctx context.Context, id uuid.UUID, message string) error
	GetServiceOrder(ctx context.Context, id uuid.UUID) (*erp.ServiceOrder, error)
	SetOrderExternalLink(ctx context.Context, id uuid.UUID, externalTaskID string) error
	MarkOrderSyncError(ctx context.Context, id uuid.UUID, message string) error
}

// Outcome reports what a handler accomplished.
type Outcome struct {
	ExternalID string
}

// Handler propagates one entity type to the platform.
type Handler interface {
	Process(ctx context.Context, job Job) (Outcome, error)
}
