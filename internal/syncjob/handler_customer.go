package syncjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/field"
)

// CustomerHandler propagates ERP customers to the platform. Creation is
// idempotent: it looks the customer up by external id first, and a document
// conflict on create resolves to linking the already-registered record.
type CustomerHandler struct {
	api      FieldAPI
	store    EntityStore
	validate *validator.Validate
}

func NewCustomerHandler(api FieldAPI, store EntityStore, validate *validator.Validate) *CustomerHandler {
	return &CustomerHandler{api: api, store: store, validate: validate}
}

func (h *CustomerHandler) Process(ctx context.Context, job Job) (Outcome, error) {
	cust, err := h.store.GetCustomer(ctx, job.EntityID)
	if errors.Is(err, erp.ErrNotFound) {
		return Outcome{}, Permanentf("customer %s no longer exists", job.EntityID)
	}
	if err != nil {
		return Outcome{}, err
	}

	var payload CustomerPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return Outcome{}, Permanentf("decode customer payload: %v", err)
	}
	if err := h.validate.Struct(payload); err != nil {
		return Outcome{}, Permanent(fmt.Errorf("invalid customer payload: %w", err))
	}
	postal := digitsOnly(payload.PostalCode)
	if len(postal) != 8 {
		return Outcome{}, Permanentf("postal code must have exactly 8 digits, got %q", payload.PostalCode)
	}

	body := field.CustomerPayload{
		Name:           payload.Name,
		DocumentNumber: digitsOnly(payload.Document),
		ExternalID:     cust.ID.String(),
		Contact: field.Contact{
			Email: payload.Email,
			Phone: digitsOnly(payload.Phone),
		},
		Address: field.Address{
			ZipCode:      postal,
			Street:       payload.Street,
			Number:       payload.Number,
			Neighborhood: payload.Neighborhood,
			Complement:   payload.Complement,
			City:         payload.City,
			State:        payload.State,
		},
	}
	if payload.Latitude != 0 || payload.Longitude != 0 {
		body.Address.Coords = &field.Coords{
			Latitude:  payload.Latitude,
			Longitude: payload.Longitude,
		}
	}

	if cust.ExternalID != nil && *cust.ExternalID != "" {
		if err := h.api.UpdateCustomer(ctx, *cust.ExternalID, body); err != nil {
			return Outcome{}, err
		}
		return Outcome{ExternalID: *cust.ExternalID}, nil
	}

	existing, err := h.api.FindCustomerByExternalID(ctx, cust.ID.String())
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		if err := h.store.SetCustomerExternalLink(ctx, cust.ID, existing.ID); err != nil {
			return Outcome{}, err
		}
		if err := h.api.UpdateCustomer(ctx, existing.ID, body); err != nil {
			return Outcome{}, err
		}
		return Outcome{ExternalID: existing.ID}, nil
	}

	rec, err := h.api.CreateCustomer(ctx, body)
	if err != nil {
		var apiErr *field.APIError
		if errors.As(err, &apiErr) && apiErr.IsDocumentConflict() && body.DocumentNumber != "" {
			return h.linkByDocument(ctx, cust, body)
		}
		return Outcome{}, err
	}
	if err := h.store.SetCustomerExternalLink(ctx, cust.ID, rec.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{ExternalID: rec.ID}, nil
}

// linkByDocument recovers from the platform's duplicate-document rejection by
// adopting the record that already owns the document number.
func (h *CustomerHandler) linkByDocument(ctx context.Context, cust *erp.Customer, body field.CustomerPayload) (Outcome, error) {
	match, err := h.api.FindCustomerByDocument(ctx, body.DocumentNumber)
	if err != nil {
		return Outcome{}, err
	}
	if match == nil {
		return Outcome{}, fmt.Errorf("document %s rejected as duplicate but owner not found", body.DocumentNumber)
	}
	if err := h.store.SetCustomerExternalLink(ctx, cust.ID, match.ID); err != nil {
		return Outcome{}, err
	}
	// Refresh the adopted record; a failure here must not undo the link.
	if err := h.api.UpdateCustomer(ctx, match.ID, body); err != nil {
		return Outcome{ExternalID: match.ID}, nil
	}
	return Outcome{ExternalID: match.ID}, nil
}
