package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitsync/internal/application"
	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

func seedCredentials(expiresAt time.Time) model.Credentials {
	return model.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiresAt,
	}
}

func refreshedTokens() model.TokenSet {
	return model.TokenSet{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    fixedNow.Add(8 * time.Hour),
	}
}

func TestTokenStore_ValidTokenNotRefreshed(t *testing.T) {
	refresher := &mockRefresher{tokens: refreshedTokens()}
	store := &mockCredentialStore{}
	ts := application.NewTokenStore(seedCredentials(fixedNow.Add(time.Minute)), refresher, store, nil).
		WithClock(func() time.Time { return fixedNow })

	creds, err := ts.Token(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Empty(t, refresher.calls)
	assert.Empty(t, store.saved)
}

func TestTokenStore_ExpiredTokenRefreshedAndPersisted(t *testing.T) {
	refresher := &mockRefresher{tokens: refreshedTokens()}
	store := &mockCredentialStore{}
	ts := application.NewTokenStore(seedCredentials(fixedNow), refresher, store, nil).
		WithClock(func() time.Time { return fixedNow })

	creds, err := ts.Token(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"refresh-1"}, refresher.calls)
	assert.Equal(t, model.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    fixedNow.Add(8 * time.Hour),
	}, creds)
	require.Len(t, store.saved, 1)
	assert.Equal(t, refreshedTokens(), store.saved[0])

	snap := ts.Snapshot()
	assert.Equal(t, fixedNow.Add(8*time.Hour), snap.ExpiresAt)
	assert.False(t, snap.Expired)
	assert.Equal(t, fixedNow, snap.LastRefresh)

	// Second call uses the refreshed token.
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Len(t, refresher.calls, 1)
}

func TestTokenStore_RefreshFailureIsAuthError(t *testing.T) {
	refresher := &mockRefresher{err: errors.New("invalid_grant")}
	store := &mockCredentialStore{}
	ts := application.NewTokenStore(seedCredentials(fixedNow.Add(-time.Hour)), refresher, store, nil).
		WithClock(func() time.Time { return fixedNow })

	_, err := ts.Token(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrAuth)
	assert.Empty(t, store.saved)
	assert.Equal(t, fixedNow.Add(-time.Hour), ts.Snapshot().ExpiresAt, "credentials unchanged")
	assert.True(t, ts.Snapshot().Expired)

	// Every call retries the refresh.
	_, err = ts.Token(context.Background())
	assert.ErrorIs(t, err, driven.ErrAuth)
	assert.Len(t, refresher.calls, 2)
}

func TestTokenStore_IncompleteRefreshRejected(t *testing.T) {
	refresher := &mockRefresher{tokens: model.TokenSet{AccessToken: "only-access", ExpiresAt: fixedNow.Add(time.Hour)}}
	store := &mockCredentialStore{}
	ts := application.NewTokenStore(seedCredentials(fixedNow), refresher, store, nil).
		WithClock(func() time.Time { return fixedNow })

	_, err := ts.Token(context.Background())

	assert.ErrorIs(t, err, driven.ErrAuth)
	assert.Empty(t, store.saved)
}

func TestTokenStore_PersistFailureStillAdoptsTokens(t *testing.T) {
	refresher := &mockRefresher{tokens: refreshedTokens()}
	store := &mockCredentialStore{err: errors.New("disk full")}
	ts := application.NewTokenStore(seedCredentials(fixedNow), refresher, store, nil).
		WithClock(func() time.Time { return fixedNow })

	creds, err := ts.Token(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "access-2", creds.AccessToken)
	assert.Equal(t, "refresh-2", creds.RefreshToken)
}

func TestTokenStore_InvalidateForcesRefresh(t *testing.T) {
	refresher := &mockRefresher{tokens: refreshedTokens()}
	store := &mockCredentialStore{}
	ts := application.NewTokenStore(seedCredentials(fixedNow.Add(time.Hour)), refresher, store, nil).
		WithClock(func() time.Time { return fixedNow })

	ts.Invalidate()
	assert.True(t, ts.Snapshot().Expired)

	creds, err := ts.Token(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "access-2", creds.AccessToken)
	assert.Equal(t, []string{"refresh-1"}, refresher.calls)
}

func TestTokenStore_ConcurrentCallersRefreshOnce(t *testing.T) {
	refresher := &mockRefresher{tokens: refreshedTokens(), blockFor: 10 * time.Millisecond}
	store := &mockCredentialStore{}
	ts := application.NewTokenStore(seedCredentials(fixedNow.Add(time.Hour)), refresher, store, nil).
		WithClock(func() time.Time { return fixedNow })

	ts.Invalidate()

	var wg sync.WaitGroup
	results := make(chan model.Credentials, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			creds, err := ts.Token(context.Background())
			if err == nil {
				results <- creds
			}
		}()
	}
	wg.Wait()
	close(results)

	for creds := range results {
		pair := creds.AccessToken + "/" + creds.RefreshToken
		assert.Equal(t, "access-2/refresh-2", pair)
	}
	assert.Len(t, refresher.calls, 1, "concurrent callers share one refresh")
}
