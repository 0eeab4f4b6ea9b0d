// Package webhook receives lifecycle events from the field-service platform
// and maps them onto ERP state: service-order status transitions, equipment
// upserts, and stock debits. The sender enforces a short response budget, so
// the handler acknowledges immediately and all processing happens in the
// background; the audit trail is the only diagnostic surface.
package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event is one normalized inbound event. The platform has shipped several
// payload shapes over time; ParseEvent folds them all into this struct.
type Event struct {
	Name        string
	TaskID      string
	Identifier  string
	StatusLabel string
	Equipment   *EquipmentData
	Items       []UsageItem
}

// EquipmentData is the equipment section of an event.
type EquipmentData struct {
	ExternalID         string
	SerialNumber       string
	Brand              string
	Model              string
	Type               string
	CustomerExternalID string
}

// UsageItem is one reported material consumption line.
type UsageItem struct {
	ProductCode string
	ProductName string
	Quantity    float64
}

// ParseEvent normalizes one raw webhook body. It is a pure function: no
// lookups, no mutation, so every payload shape can be covered by table tests.
func ParseEvent(raw []byte) (Event, error) {
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Event{}, fmt.Errorf("webhook: decode body: %w", err)
	}

	ev := Event{
		Name: firstString(envelope, "event", "type", "eventType"),
	}

	data := envelope
	if nested := firstMap(envelope, "data", "task"); nested != nil {
		data = nested
	}

	ev.TaskID = firstString(data, "id", "taskId")
	ev.Identifier = firstString(data, "identifier", "orderNumber")
	ev.StatusLabel = statusLabel(data)
	ev.Equipment = parseEquipment(data)
	ev.Items = parseItems(data)
	return ev, nil
}

// statusLabel digs the free-text status out of its three known locations:
// {status: {name: X}}, {statusName: X}, or {status: X}.
func statusLabel(data map[string]any) string {
	if status, ok := data["status"].(map[string]any); ok {
		return firstString(status, "name")
	}
	if label := firstString(data, "statusName"); label != "" {
		return label
	}
	if label, ok := data["status"].(string); ok {
		return label
	}
	return ""
}

func parseEquipment(data map[string]any) *EquipmentData {
	section := firstMap(data, "equipment")
	if section == nil {
		return nil
	}
	eq := &EquipmentData{
		ExternalID:   firstString(section, "externalId", "id"),
		SerialNumber: firstString(section, "number", "serialNumber"),
		Brand:        firstString(section, "brand"),
		Model:        firstString(section, "model", "name"),
		Type:         firstString(section, "type"),
	}
	if customer := firstMap(section, "customer"); customer != nil {
		eq.CustomerExternalID = firstString(customer, "id", "externalId")
	} else {
		eq.CustomerExternalID = firstString(section, "customerId")
	}
	if eq.ExternalID == "" {
		return nil
	}
	return eq
}

func parseItems(data map[string]any) []UsageItem {
	var rawItems []any
	for _, key := range []string{"items", "products", "materials"} {
		if list, ok := data[key].([]any); ok {
			rawItems = list
			break
		}
	}
	if len(rawItems) == 0 {
		return nil
	}

	var items []UsageItem
	for _, raw := range rawItems {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item := UsageItem{
			ProductCode: firstString(entry, "code", "productCode", "sku"),
			ProductName: firstString(entry, "name", "productName", "description"),
			Quantity:    firstFloat(entry, "quantity", "qty", "amount"),
		}
		if item.ProductCode == "" && item.ProductName == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if nested, ok := m[key].(map[string]any); ok {
			return nested
		}
	}
	return nil
}

func firstFloat(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}
