package driven

import (
	"context"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// FitbitClient defines the driven port for reading daily data from the
// vendor API. Implementations map vendor payloads to points and wrap
// failures with the sentinels in errors.go.
type FitbitClient interface {
	// FetchDay returns the points for a single category on a single day.
	// A day with no recorded data yields an empty slice and no error.
	FetchDay(ctx context.Context, accessToken string, category model.Category, day model.Day) ([]model.Point, error)
}

// TokenRefresher exchanges a refresh token for a new token pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (model.TokenSet, error)
}
