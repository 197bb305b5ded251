package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Fetch and refresh outcomes recorded as the "outcome" attribute.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Metrics holds the poller's counters.
type Metrics struct {
	fetches       metric.Int64Counter
	pointsWritten metric.Int64Counter
	rateLimited   metric.Int64Counter
	refreshes     metric.Int64Counter
}

// NewMetrics registers the poller counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	fetches, err := meter.Int64Counter("fitsync.fetches",
		metric.WithDescription("Vendor fetches by category and outcome"),
		metric.WithUnit("{fetch}"))
	if err != nil {
		return nil, fmt.Errorf("create fetches counter: %w", err)
	}

	pointsWritten, err := meter.Int64Counter("fitsync.points.written",
		metric.WithDescription("Points written to the time-series database"),
		metric.WithUnit("{point}"))
	if err != nil {
		return nil, fmt.Errorf("create points counter: %w", err)
	}

	rateLimited, err := meter.Int64Counter("fitsync.rate_limited",
		metric.WithDescription("Cycles cut short by the vendor rate limit"))
	if err != nil {
		return nil, fmt.Errorf("create rate limit counter: %w", err)
	}

	refreshes, err := meter.Int64Counter("fitsync.token.refreshes",
		metric.WithDescription("OAuth2 token refreshes by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create refresh counter: %w", err)
	}

	return &Metrics{
		fetches:       fetches,
		pointsWritten: pointsWritten,
		rateLimited:   rateLimited,
		refreshes:     refreshes,
	}, nil
}

// NopMetrics returns counters that record nothing.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

// RecordFetch counts one fetch of category with the given outcome.
func (m *Metrics) RecordFetch(ctx context.Context, category, outcome string) {
	m.fetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome),
	))
}

// RecordPointsWritten counts n points written for category.
func (m *Metrics) RecordPointsWritten(ctx context.Context, category string, n int) {
	m.pointsWritten.Add(ctx, int64(n), metric.WithAttributes(attribute.String("category", category)))
}

// RecordRateLimited counts one rate-limited cycle.
func (m *Metrics) RecordRateLimited(ctx context.Context) {
	m.rateLimited.Add(ctx, 1)
}

// RecordRefresh counts one token refresh attempt.
func (m *Metrics) RecordRefresh(ctx context.Context, outcome string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
