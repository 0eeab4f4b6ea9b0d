package syncjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/field"
)

// EquipmentHandler propagates customer equipment. It depends on the owning
// customer being synced first; until then processing fails retryably.
type EquipmentHandler struct {
	api      FieldAPI
	store    EntityStore
	validate *validator.Validate
}

func NewEquipmentHandler(api FieldAPI, store EntityStore, validate *validator.Validate) *EquipmentHandler {
	return &EquipmentHandler{api: api, store: store, validate: validate}
}

func (h *EquipmentHandler) Process(ctx context.Context, job Job) (Outcome, error) {
	eq, err := h.store.GetEquipment(ctx, job.EntityID)
	if errors.Is(err, erp.ErrNotFound) {
		return Outcome{}, Permanentf("equipment %s no longer exists", job.EntityID)
	}
	if err != nil {
		return Outcome{}, err
	}

	var payload EquipmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return Outcome{}, Permanentf("decode equipment payload: %v", err)
	}
	if err := h.validate.Struct(payload); err != nil {
		return Outcome{}, Permanent(fmt.Errorf("invalid equipment payload: %w", err))
	}

	customerExternalID, err := resolveCustomerExternalID(ctx, h.store, payload.ExternalCustomerID, payload.CustomerID)
	if err != nil {
		return Outcome{}, err
	}

	serial := eq.SerialNumber
	if serial == "" {
		serial = "EQ-" + eq.ID.String()[:8]
	}
	name := eq.Model
	if name == "" {
		name = "Equipment"
	}
	body := field.EquipmentPayload{
		ExternalID: eq.ID.String(),
		Number:     serial,
		Name:       name,
		Brand:      eq.Brand,
		Customer:   field.Ref{ID: customerExternalID},
	}

	if eq.ExternalID != nil && *eq.ExternalID != "" {
		if err := h.api.UpdateEquipment(ctx, *eq.ExternalID, body); err != nil {
			return Outcome{}, err
		}
		return Outcome{ExternalID: *eq.ExternalID}, nil
	}

	existing, err := h.api.FindEquipmentByExternalID(ctx, eq.ID.String())
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		if err := h.store.SetEquipmentExternalLink(ctx, eq.ID, existing.ID); err != nil {
			return Outcome{}, err
		}
		if err := h.api.UpdateEquipment(ctx, existing.ID, body); err != nil {
			return Outcome{}, err
		}
		return Outcome{ExternalID: existing.ID}, nil
	}

	rec, err := h.api.CreateEquipment(ctx, body)
	if err != nil {
		return Outcome{}, err
	}
	if err := h.store.SetEquipmentExternalLink(ctx, eq.ID, rec.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{ExternalID: rec.ID}, nil
}

// resolveCustomerExternalID prefers the external id patched into the payload
// by dependent reactivation, falling back to the customer row. A customer
// with no external id yet is a retryable dependency failure.
func resolveCustomerExternalID(ctx context.Context, store EntityStore, fromPayload string, customerID uuid.UUID) (string, error) {
	if fromPayload != "" {
		return fromPayload, nil
	}
	cust, err := store.GetCustomer(ctx, customerID)
	if errors.Is(err, erp.ErrNotFound) {
		return "", Permanentf("customer %s no longer exists", customerID)
	}
	if err != nil {
		return "", err
	}
	if cust.ExternalID == nil || *cust.ExternalID == "" {
		return "", fmt.Errorf("%w: %s", ErrCustomerNotSynced, customerID)
	}
	return *cust.ExternalID, nil
}
