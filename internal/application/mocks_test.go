package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// --- Mock implementations ---

type fetchCall struct {
	AccessToken string
	Category    model.Category
	Day         model.Day
}

type mockFitbitClient struct {
	mu    sync.Mutex
	calls []fetchCall
	fetch func(category model.Category, day model.Day) ([]model.Point, error)
}

func (m *mockFitbitClient) FetchDay(_ context.Context, accessToken string, category model.Category, day model.Day) ([]model.Point, error) {
	m.mu.Lock()
	m.calls = append(m.calls, fetchCall{AccessToken: accessToken, Category: category, Day: day})
	m.mu.Unlock()

	if m.fetch == nil {
		return nil, nil
	}
	return m.fetch(category, day)
}

func (m *mockFitbitClient) categories() []model.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Category, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Category)
	}
	return out
}

type mockPointWriter struct {
	batches [][]model.Point
	err     error
}

func (m *mockPointWriter) WritePoints(_ context.Context, points []model.Point) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, points)
	return nil
}

type mockCursorStore struct {
	days     map[model.Category]model.Day
	advances int
}

func newMockCursorStore() *mockCursorStore {
	return &mockCursorStore{days: make(map[model.Category]model.Day)}
}

func (m *mockCursorStore) Get(_ context.Context, category model.Category) (model.Day, error) {
	return m.days[category], nil
}

func (m *mockCursorStore) Advance(_ context.Context, category model.Category, day model.Day) error {
	m.advances++
	if day.After(m.days[category]) {
		m.days[category] = day
	}
	return nil
}

func (m *mockCursorStore) ListAll(_ context.Context) ([]model.Cursor, error) {
	var out []model.Cursor
	for _, c := range model.Categories() {
		if d, ok := m.days[c]; ok {
			out = append(out, model.Cursor{Category: c, LastDay: d})
		}
	}
	return out, nil
}

type mockTokenProvider struct {
	creds       model.Credentials
	err         error
	calls       int
	invalidated int
}

func (m *mockTokenProvider) Token(_ context.Context) (model.Credentials, error) {
	m.calls++
	if m.err != nil {
		return model.Credentials{}, m.err
	}
	return m.creds, nil
}

func (m *mockTokenProvider) Invalidate() {
	m.invalidated++
}

type mockRefresher struct {
	mu       sync.Mutex
	calls    []string
	tokens   model.TokenSet
	err      error
	blockFor time.Duration
}

func (m *mockRefresher) Refresh(_ context.Context, refreshToken string) (model.TokenSet, error) {
	if m.blockFor > 0 {
		time.Sleep(m.blockFor)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, refreshToken)
	if m.err != nil {
		return model.TokenSet{}, m.err
	}
	return m.tokens, nil
}

type mockCredentialStore struct {
	mu    sync.Mutex
	saved []model.TokenSet
	err   error
}

func (m *mockCredentialStore) LoadTokens(_ context.Context) (model.TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return model.TokenSet{}, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *mockCredentialStore) SaveTokens(_ context.Context, tokens model.TokenSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, tokens)
	return nil
}
