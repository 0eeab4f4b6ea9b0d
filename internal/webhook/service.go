package webhook

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/audit"
	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

// Store is the slice of the ERP store the receiver reads and mutates.
type Store interface {
	FindOrderByExternalTaskID(ctx context.Context, externalTaskID string) (*erp.ServiceOrder, error)
	FindOrderByNumber(ctx context.Context, number int64) (*erp.ServiceOrder, error)
	ListOrderStatuses(ctx context.Context, companyID uuid.UUID) ([]erp.OrderStatus, error)
	TransitionOrderStatus(ctx context.Context, orderID, statusID uuid.UUID, stamp *string) error
	UpsertEquipmentFromEvent(ctx context.Context, e erp.Equipment) error
	FindCustomerByExternalID(ctx context.Context, externalID string) (*erp.Customer, error)
	FindProductByCode(ctx context.Context, companyID uuid.UUID, code string) (*erp.Product, error)
	FindProductByName(ctx context.Context, companyID uuid.UUID, name string) (*erp.Product, error)
}

// UsageApplier is the inventory operation the stock path needs.
type UsageApplier interface {
	ApplyUsage(ctx context.Context, input inventory.UsageInput) (inventory.UsageResult, error)
}

const actor = "webhook"

// Service maps parsed events onto ERP state transitions.
type Service struct {
	store  Store
	stock  UsageApplier
	audit  audit.Recorder
	logger *slog.Logger
}

// NewService builds Service.
func NewService(store Store, stock UsageApplier, auditor audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, stock: stock, audit: auditor, logger: logger}
}

// ProcessEvent handles one raw webhook body. Errors are terminal here: the
// HTTP response is long gone, so every outcome lands in the log and the
// audit trail instead.
func (s *Service) ProcessEvent(ctx context.Context, raw []byte) {
	ev, err := ParseEvent(raw)
	if err != nil {
		s.logger.Warn("discarding undecodable webhook body", "error", err)
		return
	}
	if ev.Name == "" {
		s.logger.Info("discarding webhook event without a type")
		return
	}

	switch {
	case ev.Equipment != nil:
		s.processEquipment(ctx, ev)
	case len(ev.Items) > 0:
		s.processStock(ctx, ev)
	case ev.TaskID != "" || ev.Identifier != "":
		s.processTask(ctx, ev)
	default:
		s.logger.Info("ignoring webhook event", "event", ev.Name)
	}
}

// resolveOrder looks the order up by platform task id, falling back to the
// human-readable identifier ("123" or "OS-123").
func (s *Service) resolveOrder(ctx context.Context, ev Event) *erp.ServiceOrder {
	if ev.TaskID != "" {
		order, err := s.store.FindOrderByExternalTaskID(ctx, ev.TaskID)
		if err == nil {
			return order
		}
		if !errors.Is(err, erp.ErrNotFound) {
			s.logger.Error("look up order by task id", "task_id", ev.TaskID, "error", err)
			return nil
		}
	}

	identifier := strings.TrimSpace(ev.Identifier)
	if identifier == "" {
		return nil
	}
	digits := strings.TrimPrefix(strings.ToUpper(identifier), "OS-")
	number, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	order, err := s.store.FindOrderByNumber(ctx, number)
	if err != nil {
		if !errors.Is(err, erp.ErrNotFound) {
			s.logger.Error("look up order by number", "number", number, "error", err)
		}
		return nil
	}
	return order
}

func (s *Service) processTask(ctx context.Context, ev Event) {
	order := s.resolveOrder(ctx, ev)
	if order == nil {
		s.logger.Warn("no order for webhook task event", "event", ev.Name, "task_id", ev.TaskID)
		return
	}

	phase, ok := InferPhase(ev.Name, ev.StatusLabel)
	if !ok {
		s.record(ctx, order.CompanyID, "webhook.unmapped_event", "service_order", order.ID.String(), map[string]any{
			"event":        ev.Name,
			"task_id":      ev.TaskID,
			"status_label": ev.StatusLabel,
		})
		return
	}

	statuses, err := s.store.ListOrderStatuses(ctx, order.CompanyID)
	if err != nil {
		s.logger.Error("list order statuses", "company_id", order.CompanyID, "error", err)
		return
	}
	var target *erp.OrderStatus
	for i := range statuses {
		if MatchesPhase(statuses[i].Name, phase) {
			target = &statuses[i]
			break
		}
	}
	if target == nil {
		s.record(ctx, order.CompanyID, "webhook.status_unresolved", "service_order", order.ID.String(), map[string]any{
			"event":        ev.Name,
			"phase":        string(phase),
			"status_label": ev.StatusLabel,
		})
		return
	}

	var stamp *string
	switch phase {
	case PhaseStarted:
		column := "started_at"
		stamp = &column
	case PhaseCompleted:
		column := "completed_at"
		stamp = &column
	}

	if err := s.store.TransitionOrderStatus(ctx, order.ID, target.ID, stamp); err != nil {
		s.logger.Error("transition order status", "order_id", order.ID, "error", err)
		return
	}
	s.record(ctx, order.CompanyID, "webhook.task_transition", "service_order", order.ID.String(), map[string]any{
		"event":      ev.Name,
		"phase":      string(phase),
		"new_status": target.Name,
		"task_id":    ev.TaskID,
	})
	s.logger.Info("order transitioned from webhook", "order_id", order.ID, "phase", phase, "status", target.Name)
}

func (s *Service) processEquipment(ctx context.Context, ev Event) {
	eq := ev.Equipment
	if eq.CustomerExternalID == "" {
		s.logger.Warn("equipment event without customer reference", "equipment_id", eq.ExternalID)
		return
	}
	cust, err := s.store.FindCustomerByExternalID(ctx, eq.CustomerExternalID)
	if errors.Is(err, erp.ErrNotFound) {
		s.logger.Warn("equipment event for unknown customer", "customer_external_id", eq.CustomerExternalID)
		return
	}
	if err != nil {
		s.logger.Error("look up customer for equipment event", "error", err)
		return
	}

	externalID := eq.ExternalID
	err = s.store.UpsertEquipmentFromEvent(ctx, erp.Equipment{
		CompanyID:    cust.CompanyID,
		CustomerID:   cust.ID,
		SerialNumber: eq.SerialNumber,
		Brand:        eq.Brand,
		Model:        eq.Model,
		Type:         eq.Type,
		ExternalID:   &externalID,
		SyncStatus:   erp.SyncStatusSynced,
	})
	if err != nil {
		s.logger.Error("upsert equipment from webhook", "equipment_id", externalID, "error", err)
		return
	}
	s.record(ctx, cust.CompanyID, "webhook.equipment_upsert", "equipment", externalID, map[string]any{
		"event":         ev.Name,
		"customer_id":   cust.ID.String(),
		"serial_number": eq.SerialNumber,
	})
}

func (s *Service) processStock(ctx context.Context, ev Event) {
	order := s.resolveOrder(ctx, ev)
	if order == nil {
		s.logger.Warn("no order for webhook stock event", "event", ev.Name, "task_id", ev.TaskID)
		return
	}

	for _, item := range ev.Items {
		product := s.resolveProduct(ctx, order.CompanyID, item)
		if product == nil {
			s.record(ctx, order.CompanyID, "webhook.product_unresolved", "service_order", order.ID.String(), map[string]any{
				"event":        ev.Name,
				"product_code": item.ProductCode,
				"product_name": item.ProductName,
				"quantity":     item.Quantity,
			})
			continue
		}
		if !product.TracksStock {
			s.logger.Debug("skipping non-tracked product", "product_id", product.ID)
			continue
		}
		if item.Quantity <= 0 {
			continue
		}

		orderID := order.ID
		result, err := s.stock.ApplyUsage(ctx, inventory.UsageInput{
			CompanyID:      order.CompanyID,
			ProductID:      product.ID,
			Quantity:       item.Quantity,
			ServiceOrderID: &orderID,
			Reference:      ev.TaskID,
			Note:           ev.Name,
			Actor:          actor,
		})
		if err != nil {
			s.logger.Error("apply stock usage from webhook", "product_id", product.ID, "error", err)
			continue
		}
		s.record(ctx, order.CompanyID, "webhook.stock_debit", "product", product.ID.String(), map[string]any{
			"event":        ev.Name,
			"order_id":     order.ID.String(),
			"quantity":     item.Quantity,
			"stock_before": result.Entry.StockBefore,
			"stock_after":  result.Entry.StockAfter,
			"oversold":     result.Oversold,
		})
	}
}

// resolveProduct tries the external code first, then a fuzzy name match.
func (s *Service) resolveProduct(ctx context.Context, companyID uuid.UUID, item UsageItem) *erp.Product {
	if item.ProductCode != "" {
		product, err := s.store.FindProductByCode(ctx, companyID, item.ProductCode)
		if err == nil {
			return product
		}
		if !errors.Is(err, erp.ErrNotFound) {
			s.logger.Error("look up product by code", "code", item.ProductCode, "error", err)
			return nil
		}
	}
	if item.ProductName == "" {
		return nil
	}
	product, err := s.store.FindProductByName(ctx, companyID, item.ProductName)
	if err != nil {
		if !errors.Is(err, erp.ErrNotFound) {
			s.logger.Error("look up product by name", "name", item.ProductName, "error", err)
		}
		return nil
	}
	return product
}

func (s *Service) record(ctx context.Context, companyID uuid.UUID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, audit.Entry{
		CompanyID: companyID,
		Actor:     actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Meta:      meta,
	})
	if err != nil {
		s.logger.Error("write webhook audit record", "action", action, "error", err)
	}
}
