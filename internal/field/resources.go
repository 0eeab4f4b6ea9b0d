package field

import "context"

// Contact carries customer contact details.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Coords carries geolocation for an address.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is the platform's address shape.
type Address struct {
	ZipCode      string  `json:"zipCode"`
	Street       string  `json:"street"`
	Number       string  `json:"number"`
	Neighborhood string  `json:"neighborhood"`
	Complement   string  `json:"complement"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Coords       *Coords `json:"coords,omitempty"`
}

// CustomerPayload is the body for customer create/update calls.
type CustomerPayload struct {
	Name           string  `json:"name"`
	DocumentNumber string  `json:"documentNumber,omitempty"`
	ExternalID     string  `json:"externalId"`
	Contact        Contact `json:"contact"`
	Address        Address `json:"address"`
}

// EquipmentPayload is the body for equipment create/update calls.
type EquipmentPayload struct {
	ExternalID string `json:"externalId"`
	Number     string `json:"number"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	Customer   Ref    `json:"customer"`
}

// TaskPayload is the body for task create/update calls.
type TaskPayload struct {
	Identifier  string `json:"identifier"`
	ExternalID  string `json:"externalId"`
	Customer    Ref    `json:"customer"`
	ScheduledTo string `json:"scheduledTo"`
	Description string `json:"description"`
	Duration    int    `json:"duration,omitempty"`
}

// Ref references another platform resource by id.
type Ref struct {
	ID string `json:"id"`
}

// CreateCustomer registers a customer on the platform.
func (c *Client) CreateCustomer(ctx context.Context, payload CustomerPayload) (*Record, error) {
	return c.create(ctx, "customers", payload)
}

// UpdateCustomer updates an existing platform customer.
func (c *Client) UpdateCustomer(ctx context.Context, id string, payload CustomerPayload) error {
	return c.update(ctx, "customers", id, payload)
}

// FindCustomerByExternalID looks a customer up by our identifier.
func (c *Client) FindCustomerByExternalID(ctx context.Context, externalID string) (*Record, error) {
	return c.search(ctx, "customers", "externalId", externalID)
}

// FindCustomerByDocument looks a customer up by its tax document number.
func (c *Client) FindCustomerByDocument(ctx context.Context, document string) (*Record, error) {
	return c.search(ctx, "customers", "documentNumber", document)
}

// CreateEquipment registers equipment on the platform.
func (c *Client) CreateEquipment(ctx context.Context, payload EquipmentPayload) (*Record, error) {
	return c.create(ctx, "equipments", payload)
}

// UpdateEquipment updates existing platform equipment.
func (c *Client) UpdateEquipment(ctx context.Context, id string, payload EquipmentPayload) error {
	return c.update(ctx, "equipments", id, payload)
}

// FindEquipmentByExternalID looks equipment up by our identifier.
func (c *Client) FindEquipmentByExternalID(ctx context.Context, externalID string) (*Record, error) {
	return c.search(ctx, "equipments", "externalId", externalID)
}

// CreateTask registers a task on the platform.
func (c *Client) CreateTask(ctx context.Context, payload TaskPayload) (*Record, error) {
	return c.create(ctx, "tasks", payload)
}

// UpdateTask updates an existing platform task.
func (c *Client) UpdateTask(ctx context.Context, id string, payload TaskPayload) error {
	return c.update(ctx, "tasks", id, payload)
}

// FindTaskByExternalID looks a task up by our identifier.
func (c *Client) FindTaskByExternalID(ctx context.Context, externalID string) (*Record, error) {
	return c.search(ctx, "tasks", "externalId", externalID)
}
