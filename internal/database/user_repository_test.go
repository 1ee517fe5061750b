package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lessonbot/pkg/models"
)

func TestUserUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user := &models.User{ID: 100, Username: "alice", FirstName: "Alice"}
	require.NoError(t, repo.Upsert(ctx, user))

	got, err := repo.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.NotificationEnabled)
	assert.Equal(t, 9, got.NotificationHour)

	// Profile fields refresh, settings survive.
	require.NoError(t, repo.SetNotificationHour(ctx, 100, 20))
	user.Username = "alice_new"
	require.NoError(t, repo.Upsert(ctx, user))

	got, err = repo.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", got.Username)
	assert.Equal(t, 20, got.NotificationHour)
}

func TestUserGetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.GetByID(ctx, 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUsersForNotification(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, repo.Upsert(ctx, &models.User{ID: id, Username: "u"}))
	}
	require.NoError(t, repo.SetNotificationHour(ctx, 1, 8))
	require.NoError(t, repo.SetNotificationHour(ctx, 2, 8))
	require.NoError(t, repo.SetNotificationHour(ctx, 3, 20))
	require.NoError(t, repo.DisableNotifications(ctx, 2))

	users, err := repo.UsersForNotification(ctx, 8)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(1), users[0].ID)

	users, err = repo.UsersForNotification(ctx, 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(3), users[0].ID)
}

func TestUserSettingsUnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	assert.ErrorIs(t, repo.SetNotificationHour(ctx, 404, 10), ErrUserNotFound)
	assert.ErrorIs(t, repo.DisableNotifications(ctx, 404), ErrUserNotFound)
}

func TestUserGetAll(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	want := []int64{10, 20, 30}
	for _, id := range want {
		require.NoError(t, repo.Upsert(ctx, &models.User{ID: id}))
	}

	users, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	var got []int64
	for _, u := range users {
		got = append(got, u.ID)
	}
	assert.ElementsMatch(t, want, got)
}
