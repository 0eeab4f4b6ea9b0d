package syncjob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/field"
)

type memEntities struct {
	customers  map[uuid.UUID]*erp.Customer
	equipment  map[uuid.UUID]*erp.Equipment
	orders     map[uuid.UUID]*erp.ServiceOrder
	syncErrors map[uuid.UUID]string
}

func newMemEntities() *memEntities {
	return &memEntities{
		customers:  make(map[uuid.UUID]*erp.Customer),
		equipment:  make(map[uuid.UUID]*erp.Equipment),
		orders:     make(map[uuid.UUID]*erp.ServiceOrder),
		syncErrors: make(map[uuid.UUID]string),
	}
}

func (m *memEntities) GetCustomer(ctx context.Context, id uuid.UUID) (*erp.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, erp.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memEntities) SetCustomerExternalLink(ctx context.Context, id uuid.UUID, externalID string) error {
	c, ok := m.customers[id]
	if !ok {
		return erp.ErrNotFound
	}
	c.ExternalID = &externalID
	c.SyncStatus = erp.SyncStatusSynced
	return nil
}

func (m *memEntities) MarkCustomerSyncError(ctx context.Context, id uuid.UUID, message string) error {
	m.syncErrors[id] = message
	return nil
}

func (m *memEntities) GetEquipment(ctx context.Context, id uuid.UUID) (*erp.Equipment, error) {
	e, ok := m.equipment[id]
	if !ok {
		return nil, erp.ErrNotFound
	}
	ep := *e
	return &ep, nil
}

func (m *memEntities) SetEquipmentExternalLink(ctx context.Context, id uuid.UUID, externalID string) error {
	e, ok := m.equipment[id]
	if !ok {
		return erp.ErrNotFound
	}
	e.ExternalID = &externalID
	e.SyncStatus = erp.SyncStatusSynced
	return nil
}

func (m *memEntities) MarkEquipmentSyncError(ctx context.Context, id uuid.UUID, message string) error {
	m.syncErrors[id] = message
	return nil
}

func (m *memEntities) GetServiceOrder(ctx context.Context, id uuid.UUID) (*erp.ServiceOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, erp.ErrNotFound
	}
	op := *o
	return &op, nil
}

func (m *memEntities) SetOrderExternalLink(ctx context.Context, id uuid.UUID, externalTaskID string) error {
	o, ok := m.orders[id]
	if !ok {
		return erp.ErrNotFound
	}
	o.ExternalTaskID = &externalTaskID
	o.SyncStatus = erp.SyncStatusSynced
	return nil
}

func (m *memEntities) MarkOrderSyncError(ctx context.Context, id uuid.UUID, message string) error {
	m.syncErrors[id] = message
	return nil
}

type fakeAPI struct {
	nextID int

	customersByExternal map[string]*field.Record
	customersByDocument map[string]*field.Record
	equipmentByExternal map[string]*field.Record
	tasksByExternal     map[string]*field.Record

	createdCustomers []field.CustomerPayload
	updatedCustomers map[string]field.CustomerPayload
	createdEquipment []field.EquipmentPayload
	createdTasks     []field.TaskPayload

	createCustomerErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		customersByExternal: make(map[string]*field.Record),
		customersByDocument: make(map[string]*field.Record),
		equipmentByExternal: make(map[string]*field.Record),
		tasksByExternal:     make(map[string]*field.Record),
		updatedCustomers:    make(map[string]field.CustomerPayload),
	}
}

func (f *fakeAPI) newRecord(externalID string) *field.Record {
	f.nextID++
	return &field.Record{ID: fmt.Sprintf("plat-%d", f.nextID), ExternalID: externalID}
}

func (f *fakeAPI) CreateCustomer(ctx context.Context, payload field.CustomerPayload) (*field.Record, error) {
	if f.createCustomerErr != nil {
		return nil, f.createCustomerErr
	}
	rec := f.newRecord(payload.ExternalID)
	f.customersByExternal[payload.ExternalID] = rec
	f.createdCustomers = append(f.createdCustomers, payload)
	return rec, nil
}

func (f *fakeAPI) UpdateCustomer(ctx context.Context, id string, payload field.CustomerPayload) error {
	f.updatedCustomers[id] = payload
	return nil
}

func (f *fakeAPI) FindCustomerByExternalID(ctx context.Context, externalID string) (*field.Record, error) {
	return f.customersByExternal[externalID], nil
}

func (f *fakeAPI) FindCustomerByDocument(ctx context.Context, document string) (*field.Record, error) {
	return f.customersByDocument[document], nil
}

func (f *fakeAPI) CreateEquipment(ctx context.Context, payload field.EquipmentPayload) (*field.Record, error) {
	rec := f.newRecord(payload.ExternalID)
	f.equipmentByExternal[payload.ExternalID] = rec
	f.createdEquipment = append(f.createdEquipment, payload)
	return rec, nil
}

func (f *fakeAPI) UpdateEquipment(ctx context.Context, id string, payload field.EquipmentPayload) error {
	return nil
}

func (f *fakeAPI) FindEquipmentByExternalID(ctx context.Context, externalID string) (*field.Record, error) {
	return f.equipmentByExternal[externalID], nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, payload field.TaskPayload) (*field.Record, error) {
	rec := f.newRecord(payload.ExternalID)
	f.tasksByExternal[payload.ExternalID] = rec
	f.createdTasks = append(f.createdTasks, payload)
	return rec, nil
}

func (f *fakeAPI) UpdateTask(ctx context.Context, id string, payload field.TaskPayload) error {
	return nil
}

func (f *fakeAPI) FindTaskByExternalID(ctx context.Context, externalID string) (*field.Record, error) {
	return f.tasksByExternal[externalID], nil
}

type memQueue struct {
	claimable []Job

	done        []uuid.UUID
	failed      []uuid.UUID
	dead        []uuid.UUID
	released    []uuid.UUID
	reapCount   int
	failLandsOn Status

	reactivated map[uuid.UUID]string
}

func newMemQueue(jobs ...Job) *memQueue {
	return &memQueue{
		claimable:   jobs,
		failLandsOn: StatusError,
		reactivated: make(map[uuid.UUID]string),
	}
}

func (q *memQueue) Enqueue(ctx context.Context, input EnqueueInput) (*Job, error) {
	return nil, fmt.Errorf("not implemented")
}

func (q *memQueue) Claim(ctx context.Context, limit int) ([]Job, error) {
	if limit > len(q.claimable) {
		limit = len(q.claimable)
	}
	batch := q.claimable[:limit]
	q.claimable = q.claimable[limit:]
	return batch, nil
}

func (q *memQueue) MarkDone(ctx context.Context, id uuid.UUID) error {
	q.done = append(q.done, id)
	return nil
}

func (q *memQueue) MarkFailed(ctx context.Context, job Job, cause error, backoff []time.Duration) (Status, error) {
	q.failed = append(q.failed, job.ID)
	return q.failLandsOn, nil
}

func (q *memQueue) MarkDead(ctx context.Context, job Job, cause error) error {
	q.dead = append(q.dead, job.ID)
	return nil
}

func (q *memQueue) Release(ctx context.Context, ids []uuid.UUID) error {
	q.released = append(q.released, ids...)
	return nil
}

func (q *memQueue) ReapStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	return q.reapCount, nil
}

func (q *memQueue) ReactivateDependents(ctx context.Context, companyID, customerID uuid.UUID, externalID string) (int, error) {
	q.reactivated[customerID] = externalID
	return 1, nil
}

type handlerFunc func(context.Context, Job) (Outcome, error)

func (f handlerFunc) Process(ctx context.Context, job Job) (Outcome, error) {
	return f(ctx, job)
}
