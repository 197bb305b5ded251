package application

import (
	"context"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// PollerStatusSource reports the poll loop status. *Poller implements it.
type PollerStatusSource interface {
	Status() PollerStatus
}

// TokenSnapshotSource reports token expiry. *TokenStore implements it.
type TokenSnapshotSource interface {
	Snapshot() TokenSnapshot
}

// SyncStatus is the combined view served by the status endpoint.
type SyncStatus struct {
	Poller  PollerStatus
	Token   TokenSnapshot
	Cursors []model.Cursor
	Pending []model.Category // categories behind yesterday
}

// StatusService assembles the sync status for the HTTP API from the poller,
// the token store, and the cursor store.
type StatusService struct {
	poller  PollerStatusSource
	tokens  TokenSnapshotSource
	cursors driven.CursorStore
	now     func() time.Time
}

// NewStatusService creates a StatusService.
func NewStatusService(poller PollerStatusSource, tokens TokenSnapshotSource, cursors driven.CursorStore) *StatusService {
	return &StatusService{
		poller:  poller,
		tokens:  tokens,
		cursors: cursors,
		now:     time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *StatusService) WithClock(now func() time.Time) *StatusService {
	s.now = now
	return s
}

// Status returns the current sync status.
func (s *StatusService) Status(ctx context.Context) (*SyncStatus, error) {
	cursors, err := s.cursors.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return &SyncStatus{
		Poller:  s.poller.Status(),
		Token:   s.tokens.Snapshot(),
		Cursors: cursors,
		Pending: pendingCategories(cursors, model.DayOf(s.now()).AddDays(-1)),
	}, nil
}

// pendingCategories returns, in polling order, the categories whose cursor
// is missing or earlier than yesterday.
func pendingCategories(cursors []model.Cursor, yesterday model.Day) []model.Category {
	last := make(map[model.Category]model.Day, len(cursors))
	for _, c := range cursors {
		last[c.Category] = c.LastDay
	}

	pending := []model.Category{}
	for _, c := range model.Categories() {
		d, ok := last[c]
		if !ok || d.Before(yesterday) {
			pending = append(pending, c)
		}
	}
	return pending
}
