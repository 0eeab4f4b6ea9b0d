package syncjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/field"
)

// OrderHandler propagates service orders as platform tasks. Like equipment,
// it requires the owning customer's external id before it can dispatch.
type OrderHandler struct {
	api      FieldAPI
	store    EntityStore
	validate *validator.Validate
}

func NewOrderHandler(api FieldAPI, store EntityStore, validate *validator.Validate) *OrderHandler {
	return &OrderHandler{api: api, store: store, validate: validate}
}

func (h *OrderHandler) Process(ctx context.Context, job Job) (Outcome, error) {
	order, err := h.store.GetServiceOrder(ctx, job.EntityID)
	if errors.Is(err, erp.ErrNotFound) {
		return Outcome{}, Permanentf("service order %s no longer exists", job.EntityID)
	}
	if err != nil {
		return Outcome{}, err
	}

	var payload ServiceOrderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return Outcome{}, Permanentf("decode service order payload: %v", err)
	}
	if err := h.validate.Struct(payload); err != nil {
		return Outcome{}, Permanent(fmt.Errorf("invalid service order payload: %w", err))
	}

	customerExternalID, err := resolveCustomerExternalID(ctx, h.store, payload.ExternalCustomerID, payload.CustomerID)
	if err != nil {
		return Outcome{}, err
	}

	body := field.TaskPayload{
		Identifier:  strconv.FormatInt(order.OrderNumber, 10),
		ExternalID:  order.ID.String(),
		Customer:    field.Ref{ID: customerExternalID},
		ScheduledTo: scheduledTo(order.ScheduledDate, order.ScheduledTime),
		Description: orderDescription(order),
	}

	if order.ExternalTaskID != nil && *order.ExternalTaskID != "" {
		if err := h.api.UpdateTask(ctx, *order.ExternalTaskID, body); err != nil {
			return Outcome{}, err
		}
		return Outcome{ExternalID: *order.ExternalTaskID}, nil
	}

	existing, err := h.api.FindTaskByExternalID(ctx, order.ID.String())
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		if err := h.store.SetOrderExternalLink(ctx, order.ID, existing.ID); err != nil {
			return Outcome{}, err
		}
		if err := h.api.UpdateTask(ctx, existing.ID, body); err != nil {
			return Outcome{}, err
		}
		return Outcome{ExternalID: existing.ID}, nil
	}

	rec, err := h.api.CreateTask(ctx, body)
	if err != nil {
		return Outcome{}, err
	}
	if err := h.store.SetOrderExternalLink(ctx, order.ID, rec.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{ExternalID: rec.ID}, nil
}

// scheduledTo builds the platform's local datetime from the ERP's split
// date and time columns, defaulting a missing date to today and a missing
// time to the start of the workday.
func scheduledTo(date, clock string) string {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if clock == "" {
		clock = "08:00"
	}
	return date + "T" + clock + ":00"
}

func orderDescription(order *erp.ServiceOrder) string {
	if order.ReportedIssue != "" {
		return order.ReportedIssue
	}
	return fmt.Sprintf("Service Order #%d", order.OrderNumber)
}
