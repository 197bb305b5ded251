package driven

import (
	"errors"
	"fmt"
)

// Failure categories surfaced by driven adapters. Adapters wrap the
// underlying cause with one of these so callers can branch with errors.Is.
var (
	// ErrAuth means the vendor rejected the credentials or a token refresh
	// failed. An expired refresh token cannot recover without the operator
	// re-authorizing the application.
	ErrAuth = errors.New("vendor authorization failed")

	// ErrUnauthorized means the vendor rejected the access token itself. It
	// wraps ErrAuth and is the only auth failure a fresh token can cure; a
	// missing scope keeps failing after a refresh.
	ErrUnauthorized = fmt.Errorf("%w: access token rejected", ErrAuth)

	// ErrRateLimited means the hourly vendor call budget is exhausted.
	ErrRateLimited = errors.New("vendor rate limit exhausted")

	// ErrTransient covers network failures and vendor 5xx responses.
	ErrTransient = errors.New("transient vendor request failure")

	// ErrMalformed means the vendor answered with an unexpected status or a
	// payload that could not be decoded.
	ErrMalformed = errors.New("malformed vendor response")

	// ErrWrite means the time-series database did not accept a write.
	ErrWrite = errors.New("time-series write failed")
)
