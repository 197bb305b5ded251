package driven

import (
	"context"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// PointWriter defines the driven port for the time-series database.
type PointWriter interface {
	// WritePoints writes all points in one batch. Failures wrap ErrWrite.
	WritePoints(ctx context.Context, points []model.Point) error
}
