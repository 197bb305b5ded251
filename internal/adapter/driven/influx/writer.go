// Package influx implements the PointWriter port on InfluxDB 1.x.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// importedFromTag marks every point written by the poller, matching the
// tag used by the archive-export loader.
const importedFromTag = "API"

// Compile-time interface satisfaction check.
var _ driven.PointWriter = (*Writer)(nil)

// Writer implements the driven.PointWriter port over the InfluxDB HTTP API.
type Writer struct {
	client   client.Client
	database string
}

// Options configures the InfluxDB connection.
type Options struct {
	Addr     string // http://host:port
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// NewWriter creates a Writer. It does not contact the server; call
// EnsureDatabase before the first write.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create influx client: %w", err)
	}

	return &Writer{client: c, database: opts.Database}, nil
}

// EnsureDatabase creates the target database if it does not exist. CREATE
// DATABASE is a no-op for an existing database. The call is retried at a
// fixed interval so the poller can start before the database container.
func (w *Writer) EnsureDatabase(ctx context.Context, interval time.Duration, maxTries uint) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.createDatabase()
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("influx not ready, retrying", "database", w.database, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("ensure database %s: %w", w.database, err)
	}
	return nil
}

func (w *Writer) createDatabase() error {
	q := client.NewQuery(fmt.Sprintf("CREATE DATABASE %s", quoteIdent(w.database)), "", "")
	resp, err := w.client.Query(q)
	if err != nil {
		return err
	}
	if resp.Error() != nil {
		return resp.Error()
	}
	return nil
}

// WritePoints writes points as one batch with second precision. Every point
// is tagged imported_from=API and, when set, unit=<system>. The underlying
// HTTP write is not interruptible; ctx is only checked before it starts.
func (w *Writer) WritePoints(ctx context.Context, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write points: %w: %w", driven.ErrWrite, err)
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  w.database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("write points: %w: %w", driven.ErrWrite, err)
	}

	for _, p := range points {
		pt, err := toInfluxPoint(p)
		if err != nil {
			return fmt.Errorf("write points: %w: %w", driven.ErrWrite, err)
		}
		bp.AddPoint(pt)
	}

	if err := w.client.Write(bp); err != nil {
		return fmt.Errorf("write %d points to %s: %w: %w", len(points), w.database, driven.ErrWrite, err)
	}

	slog.Debug("points written", "database", w.database, "count", len(points))
	return nil
}

// Close releases the underlying HTTP client.
func (w *Writer) Close() error {
	return w.client.Close()
}

func toInfluxPoint(p model.Point) (*client.Point, error) {
	tags := map[string]string{"imported_from": importedFromTag}
	if p.Unit != "" {
		tags["unit"] = string(p.Unit)
	}

	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}

	pt, err := client.NewPoint(p.Measurement, tags, fields, p.Time)
	if err != nil {
		return nil, fmt.Errorf("point %s: %w", p.Measurement, err)
	}
	return pt, nil
}

// quoteIdent double-quotes an InfluxQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
}
