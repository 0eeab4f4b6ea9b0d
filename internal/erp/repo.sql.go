package erp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists ERP entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	var externalID, syncError pgtype.Text
	var syncUpdatedAt pgtype.Timestamptz
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.LegalName, &c.TradeName, &c.Document,
		&c.Email, &c.Phone, &c.Street, &c.Number, &c.Neighborhood,
		&c.Complement, &c.City, &c.State, &c.PostalCode,
		&c.Latitude, &c.Longitude, &c.IsActive,
		&externalID, &c.SyncStatus, &syncError, &syncUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if externalID.Valid {
		c.ExternalID = &externalID.String
	}
	if syncError.Valid {
		c.SyncError = &syncError.String
	}
	if syncUpdatedAt.Valid {
		c.SyncUpdatedAt = &syncUpdatedAt.Time
	}
	return &c, nil
}

const customerColumns = `id, company_id, legal_name, trade_name, document,
email, phone, street, number, neighborhood, complement, city, state, postal_code,
latitude, longitude, is_active, external_id, sync_status, sync_error, sync_updated_at`

// GetCustomer returns one customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
	return scanCustomer(row)
}

// ListActiveCustomers returns every active customer of the company, ordered
// by legal name. The matching engine scores all of them per run.
func (r *Repository) ListActiveCustomers(ctx context.Context, companyID uuid.UUID) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers
WHERE company_id=$1 AND is_active ORDER BY legal_name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// SetCustomerExternalLink stamps the external id and marks the customer synced.
func (r *Repository) SetCustomerExternalLink(ctx context.Context, id uuid.UUID, externalID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE customers
SET external_id=$2, sync_status=$3, sync_error=NULL, sync_updated_at=NOW()
WHERE id=$1`, id, externalID, SyncStatusSynced)
	return err
}

// MarkCustomerSyncError mirrors a propagation failure onto the customer row.
func (r *Repository) MarkCustomerSyncError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `UPDATE customers
SET sync_status=$2, sync_error=$3, sync_updated_at=NOW()
WHERE id=$1`, id, SyncStatusError, truncate(message, 500))
	return err
}

func scanEquipment(row pgx.Row) (*Equipment, error) {
	var e Equipment
	var externalID, syncError pgtype.Text
	var syncUpdatedAt pgtype.Timestamptz
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.CustomerID, &e.SerialNumber, &e.Brand, &e.Model, &e.Type,
		&externalID, &e.SyncStatus, &syncError, &syncUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if externalID.Valid {
		e.ExternalID = &externalID.String
	}
	if syncError.Valid {
		e.SyncError = &syncError.String
	}
	if syncUpdatedAt.Valid {
		e.SyncUpdatedAt = &syncUpdatedAt.Time
	}
	return &e, nil
}

const equipmentColumns = `id, company_id, customer_id, serial_number, brand, model, equipment_type,
external_id, sync_status, sync_error, sync_updated_at`

// GetEquipment returns one equipment row by id.
func (r *Repository) GetEquipment(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipments WHERE id=$1`, id)
	return scanEquipment(row)
}

// SetEquipmentExternalLink stamps the external id and marks the row synced.
func (r *Repository) SetEquipmentExternalLink(ctx context.Context, id uuid.UUID, externalID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE equipments
SET external_id=$2, sync_status=$3, sync_error=NULL, sync_updated_at=NOW()
WHERE id=$1`, id, externalID, SyncStatusSynced)
	return err
}

// MarkEquipmentSyncError mirrors a propagation failure onto the equipment row.
func (r *Repository) MarkEquipmentSyncError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `UPDATE equipments
SET sync_status=$2, sync_error=$3, sync_updated_at=NOW()
WHERE id=$1`, id, SyncStatusError, truncate(message, 500))
	return err
}

// UpsertEquipmentFromEvent creates or refreshes an equipment record reported
// by the platform, keyed on (company_id, external_id). Redelivery of the same
// event lands on the same row.
func (r *Repository) UpsertEquipmentFromEvent(ctx context.Context, e Equipment) error {
	if e.ExternalID == nil || *e.ExternalID == "" {
		return errors.New("erp: equipment upsert requires external id")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO equipments
(id, company_id, customer_id, serial_number, brand, model, equipment_type, external_id, sync_status, sync_updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (company_id, external_id) DO UPDATE SET
serial_number=EXCLUDED.serial_number, brand=EXCLUDED.brand, model=EXCLUDED.model,
equipment_type=EXCLUDED.equipment_type, sync_status=EXCLUDED.sync_status, sync_updated_at=NOW()`,
		e.ID, e.CompanyID, e.CustomerID, e.SerialNumber, e.Brand, e.Model, e.Type,
		*e.ExternalID, SyncStatusSynced)
	return err
}

// FindCustomerByExternalID resolves an ERP customer from its platform id.
// External ids are globally unique, so no company scoping is needed; inbound
// events carry no company context.
func (r *Repository) FindCustomerByExternalID(ctx context.Context, externalID string) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers
WHERE external_id=$1`, externalID)
	return scanCustomer(row)
}

func scanOrder(row pgx.Row) (*ServiceOrder, error) {
	var o ServiceOrder
	var statusID pgtype.UUID
	var startedAt, completedAt, syncUpdatedAt pgtype.Timestamptz
	var externalTaskID, syncError pgtype.Text
	err := row.Scan(
		&o.ID, &o.CompanyID, &o.CustomerID, &o.OrderNumber,
		&o.ScheduledDate, &o.ScheduledTime, &o.ReportedIssue,
		&statusID, &startedAt, &completedAt,
		&externalTaskID, &o.SyncStatus, &syncError, &syncUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if statusID.Valid {
		id := uuid.UUID(statusID.Bytes)
		o.StatusID = &id
	}
	if startedAt.Valid {
		o.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		o.CompletedAt = &completedAt.Time
	}
	if externalTaskID.Valid {
		o.ExternalTaskID = &externalTaskID.String
	}
	if syncError.Valid {
		o.SyncError = &syncError.String
	}
	if syncUpdatedAt.Valid {
		o.SyncUpdatedAt = &syncUpdatedAt.Time
	}
	return &o, nil
}

const orderColumns = `id, company_id, customer_id, order_number,
COALESCE(scheduled_date,''), COALESCE(scheduled_time,''), COALESCE(reported_issue,''),
status_id, started_at, completed_at, external_task_id, sync_status, sync_error, sync_updated_at`

// GetServiceOrder returns one service order by id.
func (r *Repository) GetServiceOrder(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id=$1`, id)
	return scanOrder(row)
}

// FindOrderByExternalTaskID resolves an order from the platform task id.
func (r *Repository) FindOrderByExternalTaskID(ctx context.Context, externalTaskID string) (*ServiceOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE external_task_id=$1`, externalTaskID)
	return scanOrder(row)
}

// FindOrderByNumber resolves an order from its human-readable identifier.
// Identifiers arrive either bare ("123") or prefixed ("OS-123"); the newest
// order wins when numbers were reused across companies.
func (r *Repository) FindOrderByNumber(ctx context.Context, number int64) (*ServiceOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders
WHERE order_number=$1
ORDER BY created_at DESC LIMIT 1`, number)
	return scanOrder(row)
}

// SetOrderExternalLink stamps the platform task id and marks the order synced.
func (r *Repository) SetOrderExternalLink(ctx context.Context, id uuid.UUID, externalTaskID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE service_orders
SET external_task_id=$2, sync_status=$3, sync_error=NULL, sync_updated_at=NOW()
WHERE id=$1`, id, externalTaskID, SyncStatusSynced)
	return err
}

// MarkOrderSyncError mirrors a propagation failure onto the order row.
func (r *Repository) MarkOrderSyncError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `UPDATE service_orders
SET sync_status=$2, sync_error=$3, sync_updated_at=NOW()
WHERE id=$1`, id, SyncStatusError, truncate(message, 500))
	return err
}

// TransitionOrderStatus moves the order to the given status. When stamp is
// non-nil, the named timestamp column is set to now as well; only the two
// lifecycle columns are accepted.
func (r *Repository) TransitionOrderStatus(ctx context.Context, orderID, statusID uuid.UUID, stamp *string) error {
	query := `UPDATE service_orders SET status_id=$2, updated_at=NOW()`
	if stamp != nil {
		switch *stamp {
		case "started_at":
			query += `, started_at=COALESCE(started_at, NOW())`
		case "completed_at":
			query += `, completed_at=COALESCE(completed_at, NOW())`
		default:
			return fmt.Errorf("erp: unknown timestamp column %q", *stamp)
		}
	}
	query += ` WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, orderID, statusID)
	return err
}

// ListOrderStatuses returns the company's configured status list.
func (r *Repository) ListOrderStatuses(ctx context.Context, companyID uuid.UUID) ([]OrderStatus, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, name FROM service_order_statuses
WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []OrderStatus
	for rows.Next() {
		var s OrderStatus
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Name); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// FindProductByCode resolves a product from its external code.
func (r *Repository) FindProductByCode(ctx context.Context, companyID uuid.UUID, code string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, company_id, code, name, quantity, tracks_stock
FROM products WHERE company_id=$1 AND code=$2`, companyID, code)
	return scanProduct(row)
}

// FindProductByName resolves a product by case-insensitive name containment,
// the fallback when a reported line item carries no code.
func (r *Repository) FindProductByName(ctx context.Context, companyID uuid.UUID, name string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, company_id, code, name, quantity, tracks_stock
FROM products WHERE company_id=$1 AND name ILIKE '%' || $2 || '%'
ORDER BY length(name) LIMIT 1`, companyID, name)
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.Quantity, &p.TracksStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpsertLink records an ERP-id to external-id mapping, idempotent on the
// (company, entity type, entity) key.
func (r *Repository) UpsertLink(ctx context.Context, link Link) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO external_links (company_id, entity_type, entity_id, external_id, linked_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (company_id, entity_type, entity_id) DO UPDATE SET
external_id=EXCLUDED.external_id, linked_at=NOW()`,
		link.CompanyID, link.EntityType, link.EntityID, link.ExternalID)
	return err
}

// CountLinks returns how many entities of the type are linked for the company.
func (r *Repository) CountLinks(ctx context.Context, companyID uuid.UUID, entityType string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM external_links
WHERE company_id=$1 AND entity_type=$2`, companyID, entityType).Scan(&count)
	return count, err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
