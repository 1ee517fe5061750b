package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/example/lessonbot/pkg/models"
)

// ErrUserNotFound reports that no user row exists for the given id.
var ErrUserNotFound = errors.New("user not found")

// UserRepository handles database operations for users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, username, first_name, last_name, is_admin, notification_enabled, notification_hour, created_at, updated_at"

// Upsert creates the user on first contact and refreshes profile fields
// on every later one. Settings the user controls are not overwritten.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (id, username, first_name, last_name, is_admin)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			is_admin = excluded.is_admin,
			updated_at = CURRENT_TIMESTAMP`)
	if _, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName, user.IsAdmin); err != nil {
		return wrapStoreErr("upsert user", err)
	}
	return nil
}

// GetByID returns one user.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStoreErr("get user", err)
	}
	return &user, nil
}

// GetAll returns every registered user.
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC"); err != nil {
		return nil, wrapStoreErr("list users", err)
	}
	return users, nil
}

// UsersForNotification returns users who enabled reminders for the
// given hour of day.
func (r *UserRepository) UsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	var users []models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE notification_enabled AND notification_hour = ?")
	if err := r.db.SelectContext(ctx, &users, query, hour); err != nil {
		return nil, wrapStoreErr("list users for notification", err)
	}
	return users, nil
}

// SetNotificationHour updates one user's reminder hour and switches
// reminders on.
func (r *UserRepository) SetNotificationHour(ctx context.Context, id int64, hour int) error {
	query := r.db.Rebind("UPDATE users SET notification_enabled = TRUE, notification_hour = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")
	res, err := r.db.ExecContext(ctx, query, hour, id)
	if err != nil {
		return wrapStoreErr("set notification hour", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DisableNotifications switches one user's reminders off.
func (r *UserRepository) DisableNotifications(ctx context.Context, id int64) error {
	query := r.db.Rebind("UPDATE users SET notification_enabled = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = ?")
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return wrapStoreErr("disable notifications", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}
