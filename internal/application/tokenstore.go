package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
	"github.com/ericfisherdev/fitsync/internal/telemetry"
)

// TokenSnapshot is the secret-free view of the token state exposed by the
// status API.
type TokenSnapshot struct {
	ExpiresAt   time.Time
	Expired     bool
	LastRefresh time.Time
}

// TokenStore owns the current Credentials and refreshes them when they
// expire. The credential value is always replaced as a whole under the mutex
// so concurrent readers never see a mix of old and new tokens.
type TokenStore struct {
	refreshMu   sync.Mutex // serializes refreshes; refresh tokens are single-use
	mu          sync.RWMutex
	creds       model.Credentials
	lastRefresh time.Time

	refresher driven.TokenRefresher
	store     driven.CredentialStore
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// NewTokenStore creates a TokenStore seeded with creds.
func NewTokenStore(
	creds model.Credentials,
	refresher driven.TokenRefresher,
	store driven.CredentialStore,
	metrics *telemetry.Metrics,
) *TokenStore {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &TokenStore{
		creds:     creds,
		refresher: refresher,
		store:     store,
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Token returns credentials with a usable access token, refreshing first if
// the current one has expired. A failed refresh wraps driven.ErrAuth and
// leaves the current credentials in place.
func (s *TokenStore) Token(ctx context.Context) (model.Credentials, error) {
	if creds, ok := s.current(); ok {
		return creds, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while this one waited.
	creds, ok := s.current()
	if ok {
		return creds, nil
	}

	slog.Info("access token expired, refreshing", "expires_at", creds.ExpiresAt)

	tokens, err := s.refresher.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		s.metrics.RecordRefresh(ctx, telemetry.OutcomeError)
		slog.Error("token refresh failed, operator re-authorization required", "error", err)
		if !errors.Is(err, driven.ErrAuth) {
			err = fmt.Errorf("%w: %w", driven.ErrAuth, err)
		}
		return model.Credentials{}, fmt.Errorf("refresh token: %w", err)
	}
	if !tokens.Complete() {
		s.metrics.RecordRefresh(ctx, telemetry.OutcomeError)
		return model.Credentials{}, fmt.Errorf("refresh token: %w: incomplete token response", driven.ErrAuth)
	}
	s.metrics.RecordRefresh(ctx, telemetry.OutcomeSuccess)

	// Refresh tokens are single-use, so the new pair is adopted even if it
	// cannot be persisted.
	if err := s.store.SaveTokens(ctx, tokens); err != nil {
		slog.Error("failed to persist refreshed tokens", "error", err)
	}

	updated := model.Credentials{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}

	s.mu.Lock()
	s.creds = updated
	s.lastRefresh = s.now()
	s.mu.Unlock()

	slog.Info("access token refreshed", "expires_at", updated.ExpiresAt)
	return updated, nil
}

// current returns the credentials and whether the access token is usable.
func (s *TokenStore) current() (model.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, !s.creds.Expired(s.now())
}

// Invalidate marks the current access token as expired so the next Token
// call refreshes it. Used when the vendor rejects a token the local clock
// still considers valid.
func (s *TokenStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.ExpiresAt = time.Time{}
}

// Snapshot returns the token expiry state without any secrets.
func (s *TokenStore) Snapshot() TokenSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TokenSnapshot{
		ExpiresAt:   s.creds.ExpiresAt,
		Expired:     s.creds.Expired(s.now()),
		LastRefresh: s.lastRefresh,
	}
}
