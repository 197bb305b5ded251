package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

func TestCursorRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCursorRepo(db)

	day, err := repo.Get(context.Background(), model.CategoryWeight)
	require.NoError(t, err)
	assert.True(t, day.IsZero())
}

func TestCursorRepo_AdvanceAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCursorRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Advance(ctx, model.CategoryWeight, model.NewDay(2024, time.January, 10)))
	require.NoError(t, repo.Advance(ctx, model.CategoryWeight, model.NewDay(2024, time.January, 11)))

	day, err := repo.Get(ctx, model.CategoryWeight)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-11", day.String())
}

func TestCursorRepo_NeverMovesBackwards(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCursorRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Advance(ctx, model.CategorySleep, model.NewDay(2024, time.March, 5)))
	require.NoError(t, repo.Advance(ctx, model.CategorySleep, model.NewDay(2024, time.March, 1)))
	require.NoError(t, repo.Advance(ctx, model.CategorySleep, model.NewDay(2024, time.March, 5)))

	day, err := repo.Get(ctx, model.CategorySleep)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", day.String())
}

func TestCursorRepo_AdvanceZeroDay(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCursorRepo(db)

	err := repo.Advance(context.Background(), model.CategoryHeart, model.Day{})
	assert.Error(t, err)
}

func TestCursorRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCursorRepo(db)
	ctx := context.Background()

	empty, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Advance(ctx, model.CategoryWeight, model.NewDay(2024, time.January, 10)))
	require.NoError(t, repo.Advance(ctx, model.CategoryActivity, model.NewDay(2024, time.January, 9)))

	cursors, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, cursors, 2)
	assert.Equal(t, model.CategoryActivity, cursors[0].Category)
	assert.Equal(t, "2024-01-09", cursors[0].LastDay.String())
	assert.Equal(t, model.CategoryWeight, cursors[1].Category)
	assert.False(t, cursors[1].UpdatedAt.IsZero())
}
