package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// ErrInvalidSecretKey is returned when STATE_SECRET_KEY cannot be used as an
// AES-256 key.
var ErrInvalidSecretKey = errors.New("state secret key must be 32 bytes")

// CredentialStore defines the driven port for persisting the token pair
// across restarts. The adapter owns encryption at rest; this interface
// operates on plaintext values.
type CredentialStore interface {
	// LoadTokens returns the persisted token set. A zero TokenSet and nil
	// error mean nothing has been persisted yet.
	LoadTokens(ctx context.Context) (model.TokenSet, error)

	// SaveTokens replaces all three token fields in a single transaction.
	SaveTokens(ctx context.Context, tokens model.TokenSet) error
}
