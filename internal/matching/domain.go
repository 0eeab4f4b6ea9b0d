// Package matching reconciles a bulk export of platform customers against
// ERP customers. A snapshot import replaces the candidate set, a matching run
// scores the full cross product and keeps the best candidate per customer,
// and an apply pass turns high-confidence results into permanent links.
package matching

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Candidate is one imported platform customer.
type Candidate struct {
	CompanyID    uuid.UUID
	FieldID      string
	Name         string
	Document     string
	LocationName string
	PostalCode   string
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	FullAddress  string
	Latitude     *float64
	Longitude    *float64
	Raw          json.RawMessage
}

// ResultStatus is the verdict attached to a match result.
type ResultStatus string

const (
	StatusAutoLink  ResultStatus = "AUTO_LINK"
	StatusReview    ResultStatus = "REVIEW"
	StatusCreateNew ResultStatus = "CREATE_NEW"
	StatusApproved  ResultStatus = "APPROVED"
	StatusRejected  ResultStatus = "REJECTED"
)

// Result is one customer's best match from the latest run.
type Result struct {
	ID            uuid.UUID    `json:"id"`
	CompanyID     uuid.UUID    `json:"company_id"`
	CustomerID    uuid.UUID    `json:"customer_id"`
	CustomerName  string       `json:"customer_name"`
	CandidateID   *string      `json:"candidate_id"`
	CandidateName *string      `json:"candidate_name"`
	Score         int          `json:"score"`
	Reason        string       `json:"reason"`
	Status        ResultStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}

// RunSummary aggregates one matching run.
type RunSummary struct {
	Total     int      `json:"total"`
	AutoLink  int      `json:"auto_link"`
	Review    int      `json:"review"`
	CreateNew int      `json:"create_new"`
	Preview   []Result `json:"preview"`
}

// StatusReport describes the engine's current state for a company.
type StatusReport struct {
	SnapshotCount int                  `json:"snapshot_count"`
	Results       map[ResultStatus]int `json:"results"`
	LinkedCount   int                  `json:"linked_count"`
}

// Weights carries the scoring weights and thresholds. All signals are
// additive and the total is capped at 100.
type Weights struct {
	NameExact        int
	NameStrong       int
	NameMedium       int
	NameWeak         int
	City             int
	State            int
	Street           int
	StreetNumber     int
	PostalExact      int
	PostalPrefix     int
	Document         int
	StreetSimilarity int
	AutoLinkScore    int
	ReviewScore      int
}

var (
	// ErrEmptySnapshot indicates a matching run with no imported candidates.
	ErrEmptySnapshot = errors.New("matching: snapshot is empty, import one first")
	// ErrResultNotFound indicates a missing or already-decided result row.
	ErrResultNotFound = errors.New("matching: result not found")
)
