package httphandler_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/fitsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/fitsync/internal/application"
	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// --- Mock implementations ---

type mockCursorStore struct {
	cursors []model.Cursor
	err     error
}

func (m *mockCursorStore) Get(_ context.Context, _ model.Category) (model.Day, error) {
	return model.Day{}, nil
}

func (m *mockCursorStore) Advance(_ context.Context, _ model.Category, _ model.Day) error {
	return nil
}

func (m *mockCursorStore) ListAll(_ context.Context) ([]model.Cursor, error) {
	return m.cursors, m.err
}

type stubPoller struct{ status application.PollerStatus }

func (s stubPoller) Status() application.PollerStatus { return s.status }

type stubTokens struct{ snap application.TokenSnapshot }

func (s stubTokens) Snapshot() application.TokenSnapshot { return s.snap }

var testNow = time.Date(2024, time.January, 12, 10, 0, 0, 0, time.UTC)

func setupMux(t *testing.T, cursors *mockCursorStore, poller stubPoller, tokens stubTokens) http.Handler {
	t.Helper()

	svc := application.NewStatusService(poller, tokens, cursors).WithClock(func() time.Time { return testNow })
	logger := slog.New(slog.DiscardHandler)
	return httphandler.NewServeMux(httphandler.NewHandler(svc, logger), logger)
}

func TestHealth(t *testing.T) {
	mux := setupMux(t, &mockCursorStore{}, stubPoller{}, stubTokens{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	_, err := time.Parse(time.RFC3339, resp.Time)
	assert.NoError(t, err)
}

func TestStatus(t *testing.T) {
	cursors := &mockCursorStore{cursors: []model.Cursor{
		{Category: model.CategoryHeart, LastDay: model.NewDay(2024, time.January, 11), UpdatedAt: testNow},
		{Category: model.CategoryWeight, LastDay: model.NewDay(2024, time.January, 10), UpdatedAt: testNow},
	}}
	poller := stubPoller{status: application.PollerStatus{
		State:       application.StateRateLimited,
		LastCycleAt: testNow,
		LastError:   "fetch weight: transient vendor request failure",
		SleepUntil:  testNow.Add(application.RateLimitSleep),
	}}
	tokens := stubTokens{snap: application.TokenSnapshot{ExpiresAt: testNow.Add(2 * time.Hour)}}

	mux := setupMux(t, cursors, poller, tokens)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "RATE_LIMITED", resp.State)
	assert.Equal(t, "2024-01-12T10:00:00Z", resp.LastCycleAt)
	assert.Empty(t, resp.LastSuccessAt)
	assert.Equal(t, "2024-01-12T11:00:10Z", resp.SleepUntil)
	assert.Contains(t, resp.LastError, "transient")
	assert.Equal(t, "2024-01-12T12:00:00Z", resp.Token.ExpiresAt)
	assert.False(t, resp.Token.Expired)

	require.Len(t, resp.Cursors, 2)
	assert.Equal(t, "heart", resp.Cursors[0].Category)
	assert.Equal(t, "2024-01-11", resp.Cursors[0].LastDay)
	assert.Equal(t, []string{"activity", "profile", "settings", "sleep", "weight"}, resp.Pending)
}

func TestStatus_NeverLeaksTokens(t *testing.T) {
	mux := setupMux(t, &mockCursorStore{}, stubPoller{}, stubTokens{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "access_token")
	assert.NotContains(t, rec.Body.String(), "refresh_token")
	assert.Contains(t, rec.Body.String(), `"cursors":[]`)
}

func TestStatus_StoreError(t *testing.T) {
	mux := setupMux(t, &mockCursorStore{err: errors.New("database is locked")}, stubPoller{}, stubTokens{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	mux := setupMux(t, &mockCursorStore{}, stubPoller{}, stubTokens{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
