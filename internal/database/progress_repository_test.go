package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/pkg/models"
)

func TestProgressUpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	rec := &models.Progress{
		OwnerID:   7,
		Completed: []int{1, 3},
		Position:  4,
		Extra:     json.RawMessage(`{"streak": 2}`),
	}
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.GetByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got.Completed)
	assert.Equal(t, 4, got.Position)
	assert.JSONEq(t, `{"streak": 2}`, string(got.Extra))

	// A second upsert replaces the whole record.
	rec.Completed = []int{1, 3, 4}
	rec.Position = 5
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err = repo.GetByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4}, got.Completed)
	assert.Equal(t, 5, got.Position)
}

func TestProgressUpsertRejectsBadPosition(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	err := repo.Upsert(ctx, &models.Progress{OwnerID: 1, Position: 0})
	assert.Error(t, err)

	_, err = repo.GetByOwner(ctx, 1)
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestProgressEnsureRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	require.NoError(t, repo.EnsureRecord(ctx, 42))

	got, err := repo.GetByOwner(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, got.Completed)
	assert.Equal(t, 1, got.Position)

	// Re-enrolling must not reset progress.
	require.NoError(t, repo.Upsert(ctx, &models.Progress{OwnerID: 42, Completed: []int{1, 2}, Position: 3}))
	require.NoError(t, repo.EnsureRecord(ctx, 42))

	got, err = repo.GetByOwner(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got.Completed)
	assert.Equal(t, 3, got.Position)
}

func TestProgressGetByOwnerNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	_, err := repo.GetByOwner(ctx, 404)
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestProgressListAll(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	for owner := int64(1); owner <= 3; owner++ {
		require.NoError(t, repo.Upsert(ctx, &models.Progress{
			OwnerID:   owner,
			Completed: []int{int(owner)},
			Position:  int(owner) + 1,
		}))
	}

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, int64(i+1), rec.OwnerID)
		assert.Equal(t, []int{i + 1}, rec.Completed)
	}
}

func TestProgressBatchWriteAppliesAll(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	for owner := int64(1); owner <= 3; owner++ {
		require.NoError(t, repo.Upsert(ctx, &models.Progress{OwnerID: owner, Completed: []int{1, 2}, Position: 3}))
	}

	err := repo.BatchWrite(ctx, []catalog.ProgressUpdate{
		{OwnerID: 1, Completed: []int{1}, Position: 2},
		{OwnerID: 2, Completed: nil, Position: 1},
	})
	require.NoError(t, err)

	r1, err := repo.GetByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, r1.Completed)
	assert.Equal(t, 2, r1.Position)

	r2, err := repo.GetByOwner(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, r2.Completed)
	assert.Equal(t, 1, r2.Position)

	// The third record was not in the batch.
	r3, err := repo.GetByOwner(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, r3.Completed)
	assert.Equal(t, 3, r3.Position)
}

func TestProgressBatchWriteEnforcesCap(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 2)

	require.NoError(t, repo.Upsert(ctx, &models.Progress{OwnerID: 1, Completed: []int{9}, Position: 9}))

	updates := []catalog.ProgressUpdate{
		{OwnerID: 1, Position: 1},
		{OwnerID: 2, Position: 1},
		{OwnerID: 3, Position: 1},
	}
	err := repo.BatchWrite(ctx, updates)
	require.Error(t, err)

	// Nothing was applied.
	r1, err := repo.GetByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, r1.Completed)
	assert.Equal(t, 9, r1.Position)
}

func TestProgressBatchWriteRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	require.NoError(t, repo.Upsert(ctx, &models.Progress{OwnerID: 1, Completed: []int{1}, Position: 2}))
	require.NoError(t, repo.Upsert(ctx, &models.Progress{OwnerID: 2, Completed: []int{1}, Position: 2}))

	// The second update violates the position check, so the first one
	// must roll back with it.
	err := repo.BatchWrite(ctx, []catalog.ProgressUpdate{
		{OwnerID: 1, Completed: []int{}, Position: 1},
		{OwnerID: 2, Completed: []int{}, Position: 0},
	})
	require.Error(t, err)

	r1, err := repo.GetByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, r1.Completed)
	assert.Equal(t, 2, r1.Position)

	r2, err := repo.GetByOwner(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, r2.Completed)
	assert.Equal(t, 2, r2.Position)
}

func TestProgressBatchWriteSkipsMissingOwners(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t), 0)

	require.NoError(t, repo.Upsert(ctx, &models.Progress{OwnerID: 1, Completed: []int{1}, Position: 2}))

	err := repo.BatchWrite(ctx, []catalog.ProgressUpdate{
		{OwnerID: 1, Completed: []int{}, Position: 1},
		{OwnerID: 999, Completed: []int{}, Position: 1},
	})
	require.NoError(t, err)

	r1, err := repo.GetByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Position)

	_, err = repo.GetByOwner(ctx, 999)
	assert.True(t, errors.Is(err, ErrProgressNotFound))
}

func TestProgressMaxBatchSize(t *testing.T) {
	db := newTestDB(t)
	assert.Equal(t, 500, NewProgressRepository(db, 0).MaxBatchSize())
	assert.Equal(t, 500, NewProgressRepository(db, -3).MaxBatchSize())
	assert.Equal(t, 42, NewProgressRepository(db, 42).MaxBatchSize())
}
