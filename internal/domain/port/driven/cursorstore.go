package driven

import (
	"context"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// CursorStore defines the driven port for per-category fetch cursors.
type CursorStore interface {
	// Get returns the cursor's last day for category, or the zero Day if the
	// category has never been fetched.
	Get(ctx context.Context, category model.Category) (model.Day, error)

	// Advance moves the cursor for category forward to day. It never moves
	// a cursor backwards; an older day is silently ignored.
	Advance(ctx context.Context, category model.Category, day model.Day) error

	// ListAll returns every stored cursor ordered by category.
	ListAll(ctx context.Context) ([]model.Cursor, error)
}
