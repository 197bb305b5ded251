// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
	"github.com/ericfisherdev/fitsync/internal/telemetry"
)

// Fixed sleeps of the poll loop.
const (
	// IdleSleep is how long the poller waits once every category is caught
	// up to yesterday.
	IdleSleep = 4 * time.Hour
	// RateLimitSleep outlasts the vendor's hourly quota window.
	RateLimitSleep = time.Hour + 10*time.Second
)

// State is the poller's position in its fetch loop.
type State int

const (
	StateFetching State = iota
	StateRateLimited
	StateIdleSleep
	StateError
)

// String returns the state name used in logs and the status API.
func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StateRateLimited:
		return "RATE_LIMITED"
	case StateIdleSleep:
		return "IDLE_SLEEP"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// TokenProvider supplies a valid access token. *TokenStore implements it.
type TokenProvider interface {
	Token(ctx context.Context) (model.Credentials, error)
	Invalidate()
}

// PollerStatus is a point-in-time view of the poll loop.
type PollerStatus struct {
	State         State
	LastCycleAt   time.Time
	LastSuccessAt time.Time
	LastError     string
	SleepUntil    time.Time
}

// dueFetch is one category whose next day is ready to be fetched.
type dueFetch struct {
	category model.Category
	day      model.Day
}

// Poller fetches each category one day at a time, writes the resulting
// points, and advances the category's cursor. Cycles run sequentially on the
// goroutine that calls Run.
type Poller struct {
	tokens  TokenProvider
	client  driven.FitbitClient
	writer  driven.PointWriter
	cursors driven.CursorStore
	metrics *telemetry.Metrics
	pause   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	status PollerStatus
}

// NewPoller creates a Poller. pause is the wait between cycles after a
// successful or failed cycle.
func NewPoller(
	tokens TokenProvider,
	client driven.FitbitClient,
	writer driven.PointWriter,
	cursors driven.CursorStore,
	metrics *telemetry.Metrics,
	pause time.Duration,
) *Poller {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Poller{
		tokens:  tokens,
		client:  client,
		writer:  writer,
		cursors: cursors,
		metrics: metrics,
		pause:   pause,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// WithClock overrides the wall clock and the sleep function, for tests.
func (p *Poller) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Poller {
	p.now = now
	p.sleep = sleep
	return p
}

// Run drives the state machine until ctx is canceled. It starts in FETCHING.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("poller started", "pause", p.pause)

	state := StateFetching
	for {
		if ctx.Err() != nil {
			slog.Info("poller stopped")
			return
		}

		wait := p.pause
		switch state {
		case StateFetching:
			next := p.RunCycle(ctx)
			if next != StateFetching {
				state = next
				continue
			}
		case StateRateLimited:
			wait = RateLimitSleep
		case StateIdleSleep:
			wait = IdleSleep
		case StateError:
			// retry after the inter-cycle pause
		}

		if ctx.Err() != nil {
			slog.Info("poller stopped")
			return
		}

		p.setSleep(state, p.now().Add(wait))
		slog.Debug("poller sleeping", "state", state.String(), "duration", wait)
		if err := p.sleep(ctx, wait); err != nil {
			slog.Info("poller stopped")
			return
		}
		state = StateFetching
	}
}

// RunCycle performs one FETCHING pass and returns the next state:
// StateFetching after a fully successful pass, StateIdleSleep when nothing
// was due, StateRateLimited when the vendor quota ran out, or StateError.
func (p *Poller) RunCycle(ctx context.Context) State {
	start := p.now()
	log := slog.With("cycle_id", uuid.NewString())
	p.beginCycle(start)

	yesterday := model.DayOf(start).AddDays(-1)

	due, err := p.dueFetches(ctx, yesterday)
	if err != nil {
		log.Error("failed to read cursors", "error", err)
		return p.fail(err)
	}

	if len(due) == 0 {
		log.Info("all categories up to date", "yesterday", yesterday.String())
		p.succeed(start)
		return StateIdleSleep
	}

	creds, err := p.tokens.Token(ctx)
	if err != nil {
		log.Error("no usable access token", "error", err)
		return p.fail(err)
	}

	for i, f := range due {
		catLog := log.With("category", string(f.category), "day", f.day.String())

		points, err := p.client.FetchDay(ctx, creds.AccessToken, f.category, f.day)
		switch {
		case errors.Is(err, driven.ErrRateLimited):
			p.metrics.RecordFetch(ctx, string(f.category), telemetry.OutcomeRateLimited)
			p.metrics.RecordRateLimited(ctx)
			catLog.Info("rate limited, pausing fetches",
				"sleep", RateLimitSleep,
				"skipped_categories", len(due)-i-1,
			)
			return StateRateLimited
		case err != nil && ctx.Err() != nil:
			catLog.Info("cycle interrupted by shutdown")
			return StateFetching
		case err != nil:
			p.metrics.RecordFetch(ctx, string(f.category), telemetry.OutcomeError)
			if errors.Is(err, driven.ErrUnauthorized) {
				p.tokens.Invalidate()
			}
			catLog.Error("fetch failed", "error", err)
			return p.fail(err)
		}
		p.metrics.RecordFetch(ctx, string(f.category), telemetry.OutcomeSuccess)

		if err := p.writer.WritePoints(ctx, points); err != nil {
			catLog.Error("write failed", "points", len(points), "error", err)
			return p.fail(err)
		}
		p.metrics.RecordPointsWritten(ctx, string(f.category), len(points))

		if err := p.cursors.Advance(ctx, f.category, f.day); err != nil {
			catLog.Error("failed to advance cursor", "error", err)
			return p.fail(err)
		}

		catLog.Info("category synced", "points", len(points))
	}

	log.Info("poll cycle complete",
		"categories", len(due),
		"duration", p.now().Sub(start).Round(time.Millisecond),
	)
	p.succeed(start)
	return StateFetching
}

// Status returns the current loop status.
func (p *Poller) Status() PollerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// dueFetches returns, in category order, every category whose next day is
// no later than yesterday. A category with no cursor starts at yesterday.
func (p *Poller) dueFetches(ctx context.Context, yesterday model.Day) ([]dueFetch, error) {
	var due []dueFetch
	for _, category := range model.Categories() {
		last, err := p.cursors.Get(ctx, category)
		if err != nil {
			return nil, err
		}

		target := yesterday
		if !last.IsZero() {
			target = last.AddDays(1)
		}
		if target.After(yesterday) {
			continue
		}
		due = append(due, dueFetch{category: category, day: target})
	}
	return due, nil
}

func (p *Poller) beginCycle(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = StateFetching
	p.status.LastCycleAt = at
	p.status.SleepUntil = time.Time{}
}

func (p *Poller) succeed(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastSuccessAt = at
	p.status.LastError = ""
}

func (p *Poller) fail(err error) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastError = err.Error()
	return StateError
}

func (p *Poller) setSleep(state State, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = state
	p.status.SleepUntil = until
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
