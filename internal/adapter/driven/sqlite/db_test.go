package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_CreatesDirectoryAndUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config", "state.db")

	db, err := NewDB(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())

	var mode string
	require.NoError(t, db.Reader.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	version, err := RunMigrations(db.Writer)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var tables int
	require.NoError(t, db.Reader.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('credentials', 'cursors')`,
	).Scan(&tables))
	assert.Equal(t, 2, tables)
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("2024-01-11T08:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 11, 8, 30, 0, 0, time.UTC), got)

	got, err = parseTime("2024-01-11 08:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 11, 8, 30, 0, 0, time.UTC), got)

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}
