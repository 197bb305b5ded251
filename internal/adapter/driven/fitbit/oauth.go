package fitbit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// defaultTokenLifetime is the vendor's access token lifetime, assumed when a
// token response omits expires_in.
const defaultTokenLifetime = 8 * time.Hour

// RefreshTimeout bounds one refresh-token exchange when no client is given.
const RefreshTimeout = 30 * time.Second

// Compile-time interface satisfaction check.
var _ driven.TokenRefresher = (*TokenRefresher)(nil)

// TokenRefresher implements the refresh-token grant against the vendor's
// OAuth2 token endpoint using HTTP basic client authentication.
type TokenRefresher struct {
	conf       *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewTokenRefresher creates a TokenRefresher. A nil httpClient is replaced
// with one that gives up after RefreshTimeout, so a stalled token endpoint
// fails the exchange instead of blocking the poll loop.
func NewTokenRefresher(clientID, clientSecret, tokenURL, redirectURL string, httpClient *http.Client) *TokenRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RefreshTimeout}
	}
	return &TokenRefresher{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Refresh exchanges refreshToken for a new token pair. The vendor's refresh
// tokens are single-use, so the returned RefreshToken must replace the old one.
// Every failure wraps driven.ErrAuth.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (model.TokenSet, error) {
	if refreshToken == "" {
		return model.TokenSet{}, fmt.Errorf("refresh token: %w: no refresh token available", driven.ErrAuth)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	// A token without an access token is never valid, which forces the
	// source to perform the refresh exchange.
	tok, err := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return model.TokenSet{}, fmt.Errorf("refresh token: %w: %w", driven.ErrAuth, err)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(defaultTokenLifetime)
	}

	return model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt.UTC(),
	}, nil
}
