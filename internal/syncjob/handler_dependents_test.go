package syncjob

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/erp"
)

func TestEquipmentHandlerWaitsForCustomerSync(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	eq := &erp.Equipment{ID: uuid.New(), CompanyID: cust.CompanyID, CustomerID: cust.ID, SerialNumber: "SN-1"}
	entities.equipment[eq.ID] = eq
	h := NewEquipmentHandler(api, entities, validator.New())

	raw, _ := json.Marshal(EquipmentPayload{CustomerID: cust.ID, SerialNumber: "SN-1"})
	job := Job{ID: uuid.New(), CompanyID: cust.CompanyID, EntityType: EntityEquipment, EntityID: eq.ID, Payload: raw}

	_, err := h.Process(context.Background(), job)
	require.ErrorIs(t, err, ErrCustomerNotSynced)
	require.False(t, IsPermanent(err))
	require.Empty(t, api.createdEquipment)
}

func TestEquipmentHandlerUsesReactivatedExternalID(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	eq := &erp.Equipment{ID: uuid.New(), CompanyID: cust.CompanyID, CustomerID: cust.ID, Brand: "Carrier", Model: "Split 12k"}
	entities.equipment[eq.ID] = eq
	h := NewEquipmentHandler(api, entities, validator.New())

	raw, _ := json.Marshal(EquipmentPayload{CustomerID: cust.ID, ExternalCustomerID: "plat-42", Model: "Split 12k"})
	job := Job{ID: uuid.New(), CompanyID: cust.CompanyID, EntityType: EntityEquipment, EntityID: eq.ID, Payload: raw}

	outcome, err := h.Process(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, outcome.ExternalID)

	require.Len(t, api.createdEquipment, 1)
	created := api.createdEquipment[0]
	require.Equal(t, "plat-42", created.Customer.ID)
	require.Equal(t, "Split 12k", created.Name)
	require.Equal(t, "EQ-"+eq.ID.String()[:8], created.Number)
	require.Equal(t, outcome.ExternalID, *entities.equipment[eq.ID].ExternalID)
}

func TestOrderHandlerBuildsTask(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	external := "plat-9"
	cust.ExternalID = &external
	order := &erp.ServiceOrder{
		ID:            uuid.New(),
		CompanyID:     cust.CompanyID,
		CustomerID:    cust.ID,
		OrderNumber:   1042,
		ScheduledDate: "2026-09-01",
		ScheduledTime: "14:30",
		ReportedIssue: "Compressor not starting",
	}
	entities.orders[order.ID] = order
	h := NewOrderHandler(api, entities, validator.New())

	raw, _ := json.Marshal(ServiceOrderPayload{CustomerID: cust.ID})
	job := Job{ID: uuid.New(), CompanyID: cust.CompanyID, EntityType: EntityServiceOrder, EntityID: order.ID, Payload: raw}

	outcome, err := h.Process(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, api.createdTasks, 1)
	task := api.createdTasks[0]
	require.Equal(t, "1042", task.Identifier)
	require.Equal(t, "plat-9", task.Customer.ID)
	require.Equal(t, "2026-09-01T14:30:00", task.ScheduledTo)
	require.Equal(t, "Compressor not starting", task.Description)
	require.Equal(t, outcome.ExternalID, *entities.orders[order.ID].ExternalTaskID)
}

func TestScheduledToDefaults(t *testing.T) {
	require.Equal(t, "2026-09-01T08:00:00", scheduledTo("2026-09-01", ""))
	got := scheduledTo("", "10:15")
	require.Regexp(t, `^\d{4}-\d{2}-\d{2}T10:15:00$`, got)
}
