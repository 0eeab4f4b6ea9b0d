package syncjob

import (
	"strings"

	"github.com/google/uuid"
)

// CustomerPayload is the field snapshot carried by customer jobs.
type CustomerPayload struct {
	Name         string  `json:"name" validate:"required,min=6"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Phone        string  `json:"phone"`
	Document     string  `json:"document"`
	PostalCode   string  `json:"postal_code" validate:"required"`
	Street       string  `json:"street"`
	Number       string  `json:"number"`
	Neighborhood string  `json:"neighborhood"`
	Complement   string  `json:"complement"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// EquipmentPayload is the field snapshot carried by equipment jobs.
// ExternalCustomerID is filled in by dependent-job reactivation once the
// owning customer syncs, sparing a lookup on the retry.
type EquipmentPayload struct {
	CustomerID         uuid.UUID `json:"customer_id" validate:"required"`
	ExternalCustomerID string    `json:"external_customer_id"`
	SerialNumber       string    `json:"serial_number"`
	Brand              string    `json:"brand"`
	Model              string    `json:"model"`
}

// ServiceOrderPayload is the field snapshot carried by service-order jobs.
type ServiceOrderPayload struct {
	CustomerID         uuid.UUID `json:"customer_id" validate:"required"`
	ExternalCustomerID string    `json:"external_customer_id"`
}

// digitsOnly strips every non-digit rune; phone numbers, tax documents and
// postal codes all travel digits-only on the wire.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
