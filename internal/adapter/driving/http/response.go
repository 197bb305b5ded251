package httphandler

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ericfisherdev/fitsync/internal/application"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatusResponse is the JSON representation of the sync status endpoint.
type StatusResponse struct {
	State         string           `json:"state"`
	LastCycleAt   string           `json:"last_cycle_at,omitempty"`
	LastSuccessAt string           `json:"last_success_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	SleepUntil    string           `json:"sleep_until,omitempty"`
	Token         TokenResponse    `json:"token"`
	Cursors       []CursorResponse `json:"cursors"`
	Pending       []string         `json:"pending"`
}

// TokenResponse describes the access token without exposing it.
type TokenResponse struct {
	ExpiresAt   string `json:"expires_at,omitempty"`
	Expired     bool   `json:"expired"`
	LastRefresh string `json:"last_refresh,omitempty"`
}

// CursorResponse is the JSON representation of one category cursor.
type CursorResponse struct {
	Category  string `json:"category"`
	LastDay   string `json:"last_day"`
	UpdatedAt string `json:"updated_at"`
}

// toStatusResponse converts the application SyncStatus to its JSON representation.
func toStatusResponse(s *application.SyncStatus) StatusResponse {
	cursors := make([]CursorResponse, 0, len(s.Cursors))
	for _, c := range s.Cursors {
		cursors = append(cursors, CursorResponse{
			Category:  string(c.Category),
			LastDay:   c.LastDay.String(),
			UpdatedAt: formatTime(c.UpdatedAt),
		})
	}

	pending := make([]string, 0, len(s.Pending))
	for _, c := range s.Pending {
		pending = append(pending, string(c))
	}

	return StatusResponse{
		State:         s.Poller.State.String(),
		LastCycleAt:   formatTime(s.Poller.LastCycleAt),
		LastSuccessAt: formatTime(s.Poller.LastSuccessAt),
		LastError:     s.Poller.LastError,
		SleepUntil:    formatTime(s.Poller.SleepUntil),
		Token: TokenResponse{
			ExpiresAt:   formatTime(s.Token.ExpiresAt),
			Expired:     s.Token.Expired,
			LastRefresh: formatTime(s.Token.LastRefresh),
		},
		Cursors: cursors,
		Pending: pending,
	}
}

// formatTime renders t as RFC3339 UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
