package audit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler serves the audit timeline API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the timeline endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit/timeline", h.handleTimeline)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseTimelineFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
		return
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func parseTimelineFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()

	companyID, err := uuid.Parse(q.Get("company_id"))
	if err != nil {
		return TimelineFilters{}, fmt.Errorf("company_id must be a valid uuid")
	}

	filters := TimelineFilters{
		CompanyID: companyID,
		Actor:     q.Get("actor"),
		Entity:    q.Get("entity"),
		Action:    q.Get("action"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return TimelineFilters{}, fmt.Errorf("from must be RFC3339")
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return TimelineFilters{}, fmt.Errorf("to must be RFC3339")
		}
		filters.To = t
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return TimelineFilters{}, fmt.Errorf("page must be a positive integer")
		}
		filters.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return TimelineFilters{}, fmt.Errorf("page_size must be a positive integer")
		}
		filters.PageSize = n
	}
	return filters, nil
}
