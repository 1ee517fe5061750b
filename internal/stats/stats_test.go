package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lessonbot/pkg/models"
)

type fakeLessons struct {
	lessons []models.Lesson
	err     error
}

func (f *fakeLessons) List(ctx context.Context) ([]models.Lesson, error) {
	return f.lessons, f.err
}

type fakeProgress struct {
	records []models.Progress
	err     error
}

func (f *fakeProgress) ListAll(ctx context.Context) ([]models.Progress, error) {
	return f.records, f.err
}

type fakeUsers struct {
	users []models.User
	err   error
}

func (f *fakeUsers) GetAll(ctx context.Context) ([]models.User, error) {
	return f.users, f.err
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	svc := NewService(
		&fakeLessons{},
		&fakeProgress{records: []models.Progress{
			{OwnerID: 1, Completed: []int{1}, Position: 2},
			{OwnerID: 2, Completed: []int{1, 2, 3}, Position: 4},
			{OwnerID: 3, Completed: []int{1}, Position: 3},
		}},
		&fakeUsers{users: []models.User{
			{ID: 1, Username: "alice"},
			{ID: 2, FirstName: "Boris"},
		}},
		nil,
	)

	entries, err := svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Boris", entries[0].Name)
	assert.Equal(t, 3, entries[0].Completed)

	// Same completed count: the learner further along ranks first.
	assert.Equal(t, int64(3), entries[1].OwnerID)
	assert.Equal(t, "user 3", entries[1].Name)
	assert.Equal(t, "@alice", entries[2].Name)
}

func TestLeaderboardLimit(t *testing.T) {
	ctx := context.Background()
	var records []models.Progress
	for owner := int64(1); owner <= 5; owner++ {
		records = append(records, models.Progress{OwnerID: owner, Completed: []int{1}, Position: 2})
	}
	svc := NewService(&fakeLessons{}, &fakeProgress{records: records}, &fakeUsers{}, nil)

	entries, err := svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLeaderboardLoadError(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeLessons{}, &fakeProgress{err: errors.New("boom")}, &fakeUsers{}, nil)

	_, err := svc.Leaderboard(ctx, 0)
	assert.Error(t, err)
}

func TestCompletionRates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(
		&fakeLessons{lessons: []models.Lesson{
			{ID: "a", Seq: 1, Title: "Intro"},
			{ID: "b", Seq: 2, Title: "Basics"},
			{ID: "c", Seq: 3, Title: "Review"},
		}},
		&fakeProgress{records: []models.Progress{
			{OwnerID: 1, Completed: []int{1, 2}, Position: 3},
			{OwnerID: 2, Completed: []int{1}, Position: 2},
			{OwnerID: 3, Completed: []int{}, Position: 1},
			{OwnerID: 4, Completed: []int{1, 2, 3}, Position: 4},
		}},
		&fakeUsers{},
		nil,
	)

	rates, err := svc.CompletionRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 3)

	assert.Equal(t, 3, rates[0].Completed)
	assert.InDelta(t, 0.75, rates[0].Rate, 1e-9)
	assert.Equal(t, 2, rates[1].Completed)
	assert.InDelta(t, 0.5, rates[1].Rate, 1e-9)
	assert.Equal(t, 1, rates[2].Completed)
	assert.InDelta(t, 0.25, rates[2].Rate, 1e-9)
}

func TestCompletionRatesNoRecords(t *testing.T) {
	ctx := context.Background()
	svc := NewService(
		&fakeLessons{lessons: []models.Lesson{{ID: "a", Seq: 1, Title: "Intro"}}},
		&fakeProgress{},
		&fakeUsers{},
		nil,
	)

	rates, err := svc.CompletionRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Zero(t, rates[0].Completed)
	assert.Zero(t, rates[0].Rate)
}

func TestRegistrationTrend(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	svc := NewService(&fakeLessons{}, &fakeProgress{}, &fakeUsers{users: []models.User{
		{ID: 1, CreatedAt: now},
		{ID: 2, CreatedAt: now},
		{ID: 3, CreatedAt: now.AddDate(0, 0, -1)},
		{ID: 4, CreatedAt: now.AddDate(0, 0, -40)},
	}}, nil)

	points, err := svc.RegistrationTrend(ctx, 7)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, now.AddDate(0, 0, -1).Format("2006-01-02"), points[0].Date)
	assert.Equal(t, 1, points[0].Count)
	assert.Equal(t, now.Format("2006-01-02"), points[1].Date)
	assert.Equal(t, 2, points[1].Count)

	// The whole history includes the old signup.
	points, err = svc.RegistrationTrend(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}
