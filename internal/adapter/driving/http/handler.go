// Package httphandler serves the health and sync status JSON API.
package httphandler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitsync/internal/application"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	statusSvc *application.StatusService
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(statusSvc *application.StatusService, logger *slog.Logger) *Handler {
	return &Handler{
		statusSvc: statusSvc,
		logger:    logger,
		now:       time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)

	// Recovery sits inside the request log so a panic is logged as a 500.
	return withRequestLog(logger, withRecovery(logger, mux))
}

// Health returns a simple liveness response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	})
}

// Status returns the poller state, token expiry, and per-category cursors.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.statusSvc.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to load sync status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(status))
}
