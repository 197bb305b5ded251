package model

import "time"

// Credentials holds the OAuth2 client registration and the current token
// pair. The three token fields are always replaced together.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is no longer usable at now.
// A zero ExpiresAt is treated as expired.
func (c Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt.IsZero() || !now.Before(c.ExpiresAt)
}

// TokenSet is the persisted subset of Credentials.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Complete reports whether both tokens are present.
func (t TokenSet) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}
