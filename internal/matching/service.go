package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/audit"
	"github.com/meridian-erp/meridian-erp/internal/erp"
)

// LinkEntityType tags links produced by the matching engine, as opposed to
// links created by regular propagation.
const LinkEntityType = "customer_matched"

const previewLimit = 50

// CustomerDirectory is the slice of the ERP store the engine reads and links.
type CustomerDirectory interface {
	ListActiveCustomers(ctx context.Context, companyID uuid.UUID) ([]erp.Customer, error)
	UpsertLink(ctx context.Context, link erp.Link) error
	CountLinks(ctx context.Context, companyID uuid.UUID, entityType string) (int, error)
}

// Service coordinates the import / run / apply phases.
type Service struct {
	store     Store
	customers CustomerDirectory
	weights   Weights
	audit     audit.Recorder
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(store Store, customers CustomerDirectory, weights Weights, auditor audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, customers: customers, weights: weights, audit: auditor, logger: logger}
}

// ImportSnapshot replaces the candidate set from a bulk export. Rows arrive
// as loose maps because exports come with either localized spreadsheet
// headers or API field names; rows without an id are dropped.
func (s *Service) ImportSnapshot(ctx context.Context, companyID uuid.UUID, rows []map[string]any) (int, error) {
	if companyID == uuid.Nil {
		return 0, fmt.Errorf("matching: company id required")
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		c := Candidate{
			CompanyID:    companyID,
			FieldID:      pickString(row, "ID", "id"),
			Name:         pickString(row, "Nome do cliente", "name"),
			Document:     digitsOnly(pickString(row, "CPF/CNPJ", "document")),
			LocationName: pickString(row, "Nome da Localização", "location_name"),
			PostalCode:   pickString(row, "CEP", "cep"),
			Street:       pickString(row, "Rua", "street"),
			Number:       pickString(row, "Número", "number"),
			Complement:   pickString(row, "Complemento", "complement"),
			Neighborhood: pickString(row, "Bairro", "neighborhood"),
			City:         pickString(row, "Cidade", "city"),
			State:        pickString(row, "Estado", "state"),
			FullAddress:  pickString(row, "Endereço Completo", "full_address"),
			Latitude:     pickFloat(row, "Latitude", "latitude"),
			Longitude:    pickFloat(row, "Longitude", "longitude"),
		}
		if c.FieldID == "" {
			continue
		}
		if raw, err := json.Marshal(row); err == nil {
			c.Raw = raw
		}
		candidates = append(candidates, c)
	}

	imported, err := s.store.ReplaceSnapshot(ctx, companyID, candidates)
	if err != nil {
		return 0, err
	}
	s.logger.Info("imported matching snapshot", "company_id", companyID, "imported", imported, "dropped", len(rows)-imported)
	return imported, nil
}

// Run scores every active customer against every candidate and replaces the
// result set with the new run's verdicts.
func (s *Service) Run(ctx context.Context, companyID uuid.UUID) (RunSummary, error) {
	candidates, err := s.store.ListCandidates(ctx, companyID)
	if err != nil {
		return RunSummary{}, err
	}
	if len(candidates) == 0 {
		return RunSummary{}, ErrEmptySnapshot
	}
	customers, err := s.customers.ListActiveCustomers(ctx, companyID)
	if err != nil {
		return RunSummary{}, err
	}

	var summary RunSummary
	results := make([]Result, 0, len(customers))
	for _, cust := range customers {
		res := s.bestMatch(companyID, cust, candidates)
		switch res.Status {
		case StatusAutoLink:
			summary.AutoLink++
		case StatusReview:
			summary.Review++
		default:
			summary.CreateNew++
		}
		results = append(results, res)
	}
	summary.Total = len(results)

	if err := s.store.ReplaceResults(ctx, companyID, results); err != nil {
		return RunSummary{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			CompanyID: companyID,
			Actor:     "matching",
			Action:    "matching.run",
			Entity:    "company",
			EntityID:  companyID.String(),
			Meta: map[string]any{
				"customers":  len(customers),
				"candidates": len(candidates),
				"auto_link":  summary.AutoLink,
				"review":     summary.Review,
				"create_new": summary.CreateNew,
			},
		})
	}

	preview := results
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	summary.Preview = preview
	s.logger.Info("matching run complete", "company_id", companyID,
		"total", summary.Total, "auto_link", summary.AutoLink,
		"review", summary.Review, "create_new", summary.CreateNew)
	return summary, nil
}

// bestMatch keeps the highest-scoring candidate; on equal scores the
// candidate encountered first in snapshot order wins. A candidate is only
// recorded when the score reaches the review threshold.
func (s *Service) bestMatch(companyID uuid.UUID, cust erp.Customer, candidates []Candidate) Result {
	bestScore := -1
	bestReason := "no match found"
	var best *Candidate
	for i := range candidates {
		score, reason := Score(s.weights, cust, candidates[i])
		if score > bestScore {
			bestScore = score
			bestReason = reason
			best = &candidates[i]
		}
	}

	res := Result{
		CompanyID:    companyID,
		CustomerID:   cust.ID,
		CustomerName: cust.DisplayName(),
		Score:        bestScore,
		Reason:       bestReason,
		Status:       StatusCreateNew,
	}
	if best != nil && bestScore >= s.weights.ReviewScore {
		res.CandidateID = &best.FieldID
		name := best.Name
		res.CandidateName = &name
		if bestScore >= s.weights.AutoLinkScore {
			res.Status = StatusAutoLink
		} else {
			res.Status = StatusReview
		}
	}
	return res
}

// Apply turns AUTO_LINK and manually APPROVED results into permanent links.
// The upsert is idempotent, so re-applying is safe.
func (s *Service) Apply(ctx context.Context, companyID uuid.UUID) (int, error) {
	results, err := s.store.ListResults(ctx, companyID, StatusAutoLink, StatusApproved)
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, res := range results {
		if res.CandidateID == nil {
			continue
		}
		err := s.customers.UpsertLink(ctx, erp.Link{
			CompanyID:  companyID,
			EntityType: LinkEntityType,
			EntityID:   res.CustomerID,
			ExternalID: *res.CandidateID,
		})
		if err != nil {
			return linked, fmt.Errorf("matching: link customer %s: %w", res.CustomerID, err)
		}
		linked++
	}

	if s.audit != nil && linked > 0 {
		_ = s.audit.Record(ctx, audit.Entry{
			CompanyID: companyID,
			Actor:     "matching",
			Action:    "matching.apply",
			Entity:    "company",
			EntityID:  companyID.String(),
			Meta:      map[string]any{"linked": linked},
		})
	}
	return linked, nil
}

// Results lists the latest run's results, optionally filtered by status.
func (s *Service) Results(ctx context.Context, companyID uuid.UUID, statuses ...ResultStatus) ([]Result, error) {
	return s.store.ListResults(ctx, companyID, statuses...)
}

// Approve moves a REVIEW result to APPROVED so the next apply links it.
func (s *Service) Approve(ctx context.Context, companyID, resultID uuid.UUID) error {
	return s.store.SetResultStatus(ctx, companyID, resultID, StatusReview, StatusApproved)
}

// Reject discards a REVIEW result.
func (s *Service) Reject(ctx context.Context, companyID, resultID uuid.UUID) error {
	return s.store.SetResultStatus(ctx, companyID, resultID, StatusReview, StatusRejected)
}

// Status reports snapshot size, result counts per status, and linked total.
func (s *Service) Status(ctx context.Context, companyID uuid.UUID) (StatusReport, error) {
	snapshotCount, err := s.store.CountCandidates(ctx, companyID)
	if err != nil {
		return StatusReport{}, err
	}
	counts, err := s.store.CountResultsByStatus(ctx, companyID)
	if err != nil {
		return StatusReport{}, err
	}
	for _, status := range []ResultStatus{StatusAutoLink, StatusReview, StatusCreateNew, StatusApproved, StatusRejected} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	linked, err := s.customers.CountLinks(ctx, companyID, LinkEntityType)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{SnapshotCount: snapshotCount, Results: counts, LinkedCount: linked}, nil
}

func pickString(row map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := row[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func pickFloat(row map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		switch v := row[key].(type) {
		case float64:
			f := v
			return &f
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}
