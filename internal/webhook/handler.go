package webhook

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

const (
	maxBodyBytes      = 1 << 20
	processingTimeout = 30 * time.Second
)

// Handler receives platform webhooks. It acknowledges immediately and pushes
// the actual processing into the background so the sender never times out.
type Handler struct {
	logger  *slog.Logger
	service *Service
	secret  string

	// process is swapped in tests to observe the background call.
	process func(ctx context.Context, raw []byte)
}

// NewHandler builds Handler. An empty secret disables authentication.
func NewHandler(logger *slog.Logger, service *Service, secret string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, secret: secret}
	h.process = service.ProcessEvent
	return h
}

// MountRoutes registers the receiver endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	r.With(limiter).Post("/webhooks/field", h.receive)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid webhook secret")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "unable to read request body")
		return
	}

	go func() {
		// Detached from the request context: the 202 is already out.
		ctx, cancel := context.WithTimeout(context.Background(), processingTimeout)
		defer cancel()
		h.process(ctx, raw)
	}()

	httpx.JSON(w, http.StatusAccepted, map[string]any{"received": true})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get("X-Webhook-Secret")
	got = strings.TrimPrefix(got, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
