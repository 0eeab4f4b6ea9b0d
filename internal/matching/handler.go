package matching

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler serves the matching engine API. Runs execute synchronously within
// the request; callers wait for the full scoring pass.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers the matching endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/matching", func(r chi.Router) {
		r.Post("/import", h.handleImportSnapshot)
		r.Post("/run", h.handleRun)
		r.Post("/apply", h.handleApply)
		r.Get("/status", h.handleStatus)
		r.Get("/results", h.handleResults)
		r.Post("/results/{resultID}/approve", h.handleApprove)
		r.Post("/results/{resultID}/reject", h.handleReject)
	})
}

type snapshotRequest struct {
	CompanyID uuid.UUID        `json:"company_id" validate:"required"`
	Rows      []map[string]any `json:"rows" validate:"required,min=1"`
}

func (h *Handler) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	imported, err := h.service.ImportSnapshot(r.Context(), req.CompanyID, req.Rows)
	if err != nil {
		h.logger.Error("import matching snapshot", "company_id", req.CompanyID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"imported": imported})
}

type companyRequest struct {
	CompanyID uuid.UUID `json:"company_id" validate:"required"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	summary, err := h.service.Run(r.Context(), req.CompanyID)
	if errors.Is(err, ErrEmptySnapshot) {
		httpx.Problem(w, http.StatusBadRequest, "Empty Snapshot", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("run matching", "company_id", req.CompanyID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	linked, err := h.service.Apply(r.Context(), req.CompanyID)
	if err != nil {
		h.logger.Error("apply matching results", "company_id", req.CompanyID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"linked": linked})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(r.URL.Query().Get("company_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "company_id must be a valid uuid")
		return
	}

	report, err := h.service.Status(r.Context(), companyID)
	if err != nil {
		h.logger.Error("matching status", "company_id", companyID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(r.URL.Query().Get("company_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "company_id must be a valid uuid")
		return
	}
	var statuses []ResultStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, ResultStatus(raw))
	}

	results, err := h.service.Results(r.Context(), companyID, statuses...)
	if err != nil {
		h.logger.Error("list matching results", "company_id", companyID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, companyID, resultID uuid.UUID) error) {
	resultID, err := uuid.Parse(chi.URLParam(r, "resultID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "resultID must be a valid uuid")
		return
	}
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	if err := fn(r.Context(), req.CompanyID, resultID); err != nil {
		if errors.Is(err, ErrResultNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "result not found or already decided")
			return
		}
		h.logger.Error("decide matching result", "result_id", resultID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
