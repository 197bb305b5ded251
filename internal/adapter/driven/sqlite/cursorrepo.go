package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CursorStore = (*CursorRepo)(nil)

// CursorRepo is the SQLite implementation of the CursorStore port interface.
type CursorRepo struct {
	db *DB
}

// NewCursorRepo creates a new CursorRepo backed by the given DB.
func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

// Get returns the last fetched day for category, or the zero Day if none.
func (r *CursorRepo) Get(ctx context.Context, category model.Category) (model.Day, error) {
	const query = `SELECT last_day FROM cursors WHERE category = ?`

	var lastDay string
	err := r.db.Reader.QueryRowContext(ctx, query, string(category)).Scan(&lastDay)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Day{}, nil
	}
	if err != nil {
		return model.Day{}, fmt.Errorf("get cursor %s: %w", category, err)
	}

	day, err := model.ParseDay(lastDay)
	if err != nil {
		return model.Day{}, fmt.Errorf("get cursor %s: %w", category, err)
	}
	return day, nil
}

// Advance upserts the cursor for category. The conflict clause only fires
// when the new day is later, so cursors never move backwards. YYYY-MM-DD
// strings compare in date order.
func (r *CursorRepo) Advance(ctx context.Context, category model.Category, day model.Day) error {
	if day.IsZero() {
		return fmt.Errorf("advance cursor %s: zero day", category)
	}

	const query = `
		INSERT INTO cursors (category, last_day, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			last_day = excluded.last_day,
			updated_at = excluded.updated_at
		WHERE excluded.last_day > cursors.last_day
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		string(category), day.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("advance cursor %s to %s: %w", category, day, err)
	}

	return nil
}

// ListAll returns all stored cursors ordered by category name.
func (r *CursorRepo) ListAll(ctx context.Context) ([]model.Cursor, error) {
	const query = `SELECT category, last_day, updated_at FROM cursors ORDER BY category`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var cursors []model.Cursor
	for rows.Next() {
		var category, lastDay, updatedAt string
		if err := rows.Scan(&category, &lastDay, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}

		day, err := model.ParseDay(lastDay)
		if err != nil {
			return nil, fmt.Errorf("cursor %s: %w", category, err)
		}

		ts, err := parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for cursor %s: %w", category, err)
		}

		cursors = append(cursors, model.Cursor{
			Category:  model.Category(category),
			LastDay:   day,
			UpdatedAt: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cursors: %w", err)
	}

	if cursors == nil {
		cursors = []model.Cursor{}
	}
	return cursors, nil
}
