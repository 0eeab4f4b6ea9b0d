package syncjob

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/field"
)

func customerFixture(entities *memEntities) *erp.Customer {
	c := &erp.Customer{
		ID:         uuid.New(),
		CompanyID:  uuid.New(),
		LegalName:  "Acme Refrigeration Ltda",
		Document:   "12.345.678/0001-90",
		PostalCode: "01310-100",
		SyncStatus: erp.SyncStatusPending,
		IsActive:   true,
	}
	entities.customers[c.ID] = c
	return c
}

func customerJob(c *erp.Customer, payload CustomerPayload) Job {
	raw, _ := json.Marshal(payload)
	return Job{
		ID:         uuid.New(),
		CompanyID:  c.CompanyID,
		EntityType: EntityCustomer,
		EntityID:   c.ID,
		Action:     ActionCreate,
		Payload:    raw,
	}
}

func validCustomerPayload() CustomerPayload {
	return CustomerPayload{
		Name:       "Acme Refrigeration Ltda",
		Phone:      "(16) 99999-1234",
		Document:   "12.345.678/0001-90",
		PostalCode: "01310-100",
		Street:     "Avenida Paulista",
		Number:     "1000",
		City:       "Sao Paulo",
		State:      "SP",
	}
}

func TestCustomerHandlerCreatesAndLinks(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	h := NewCustomerHandler(api, entities, validator.New())

	outcome, err := h.Process(context.Background(), customerJob(cust, validCustomerPayload()))
	require.NoError(t, err)
	require.NotEmpty(t, outcome.ExternalID)

	require.Len(t, api.createdCustomers, 1)
	created := api.createdCustomers[0]
	require.Equal(t, cust.ID.String(), created.ExternalID)
	require.Equal(t, "12345678000190", created.DocumentNumber)
	require.Equal(t, "16999991234", created.Contact.Phone)
	require.Equal(t, "01310100", created.Address.ZipCode)

	stored := entities.customers[cust.ID]
	require.NotNil(t, stored.ExternalID)
	require.Equal(t, outcome.ExternalID, *stored.ExternalID)
}

func TestCustomerHandlerReusesExistingRemote(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	api.customersByExternal[cust.ID.String()] = &field.Record{ID: "plat-77", ExternalID: cust.ID.String()}
	h := NewCustomerHandler(api, entities, validator.New())

	outcome, err := h.Process(context.Background(), customerJob(cust, validCustomerPayload()))
	require.NoError(t, err)
	require.Equal(t, "plat-77", outcome.ExternalID)

	require.Empty(t, api.createdCustomers)
	require.Contains(t, api.updatedCustomers, "plat-77")
	require.Equal(t, "plat-77", *entities.customers[cust.ID].ExternalID)
}

func TestCustomerHandlerIsIdempotentAcrossRuns(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	h := NewCustomerHandler(api, entities, validator.New())
	job := customerJob(cust, validCustomerPayload())

	first, err := h.Process(context.Background(), job)
	require.NoError(t, err)
	second, err := h.Process(context.Background(), job)
	require.NoError(t, err)

	require.Equal(t, first.ExternalID, second.ExternalID)
	require.Len(t, api.createdCustomers, 1)
}

func TestCustomerHandlerAdoptsDocumentConflict(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	api.createCustomerErr = &field.APIError{
		Status: http.StatusUnprocessableEntity,
		Body:   `{"errors":[{"field":"documentNumber","message":"document number already exists"}]}`,
	}
	api.customersByDocument["12345678000190"] = &field.Record{ID: "plat-owner", ExternalID: ""}
	h := NewCustomerHandler(api, entities, validator.New())

	outcome, err := h.Process(context.Background(), customerJob(cust, validCustomerPayload()))
	require.NoError(t, err)
	require.Equal(t, "plat-owner", outcome.ExternalID)
	require.Equal(t, "plat-owner", *entities.customers[cust.ID].ExternalID)
}

func TestCustomerHandlerRejectsInvalidPayloads(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	cust := customerFixture(entities)
	h := NewCustomerHandler(api, entities, validator.New())

	short := validCustomerPayload()
	short.Name = "Acme"
	_, err := h.Process(context.Background(), customerJob(cust, short))
	require.Error(t, err)
	require.True(t, IsPermanent(err))

	badPostal := validCustomerPayload()
	badPostal.PostalCode = "1310"
	_, err = h.Process(context.Background(), customerJob(cust, badPostal))
	require.Error(t, err)
	require.True(t, IsPermanent(err))

	require.Empty(t, api.createdCustomers)
}

func TestCustomerHandlerMissingCustomerIsPermanent(t *testing.T) {
	entities := newMemEntities()
	api := newFakeAPI()
	h := NewCustomerHandler(api, entities, validator.New())

	job := customerJob(&erp.Customer{ID: uuid.New(), CompanyID: uuid.New()}, validCustomerPayload())
	_, err := h.Process(context.Background(), job)
	require.Error(t, err)
	require.True(t, IsPermanent(err))
}
