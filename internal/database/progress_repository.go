package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/pkg/models"
)

// ErrProgressNotFound reports that a learner has no progress record yet.
var ErrProgressNotFound = errors.New("progress record not found")

const defaultMaxBatch = 500

// ProgressRepository handles database operations for progress records.
// It implements catalog.ProgressStore.
type ProgressRepository struct {
	db       *sqlx.DB
	maxBatch int
}

// NewProgressRepository creates a new repository instance. maxBatch is
// the largest number of writes applied in one atomic call; values <= 0
// fall back to the default cap.
func NewProgressRepository(db *sqlx.DB, maxBatch int) *ProgressRepository {
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	return &ProgressRepository{db: db, maxBatch: maxBatch}
}

// MaxBatchSize is the store-imposed cap on writes per atomic call.
func (r *ProgressRepository) MaxBatchSize() int { return r.maxBatch }

const progressColumns = "owner_id, completed, position, extra, created_at, updated_at"

// GetByOwner returns one learner's progress record.
func (r *ProgressRepository) GetByOwner(ctx context.Context, ownerID int64) (*models.Progress, error) {
	query := r.db.Rebind("SELECT " + progressColumns + " FROM progress WHERE owner_id = ?")
	rec, err := scanProgress(r.db.QueryRowxContext(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, wrapStoreErr("get progress record", err)
	}
	return rec, nil
}

// ListAll returns every progress record.
func (r *ProgressRepository) ListAll(ctx context.Context) ([]models.Progress, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT "+progressColumns+" FROM progress ORDER BY owner_id ASC")
	if err != nil {
		return nil, wrapStoreErr("list progress records", err)
	}
	defer rows.Close()

	var records []models.Progress
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, wrapStoreErr("scan progress record", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("list progress records", err)
	}
	return records, nil
}

// EnsureRecord creates the enrollment record for a learner if it does
// not exist yet. An existing record is left untouched.
func (r *ProgressRepository) EnsureRecord(ctx context.Context, ownerID int64) error {
	query := r.db.Rebind(`
		INSERT INTO progress (owner_id, completed, position) VALUES (?, '[]', 1)
		ON CONFLICT (owner_id) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, ownerID); err != nil {
		return wrapStoreErr("create progress record", err)
	}
	return nil
}

// Upsert writes one learner's full record. Progression and repair may
// race on the same row; the outcome is last write wins per record.
func (r *ProgressRepository) Upsert(ctx context.Context, rec *models.Progress) error {
	if rec.Position < 1 {
		return fmt.Errorf("position must be >= 1, got %d", rec.Position)
	}
	completed, err := marshalCompleted(rec.Completed)
	if err != nil {
		return fmt.Errorf("failed to encode completed set: %w", err)
	}

	var extra interface{}
	if len(rec.Extra) > 0 {
		extra = string(rec.Extra)
	}

	query := r.db.Rebind(`
		INSERT INTO progress (owner_id, completed, position, extra) VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			completed = excluded.completed,
			position = excluded.position,
			extra = excluded.extra,
			updated_at = CURRENT_TIMESTAMP`)
	if _, err := r.db.ExecContext(ctx, query, rec.OwnerID, completed, rec.Position, extra); err != nil {
		return wrapStoreErr("upsert progress record", err)
	}
	return nil
}

// BatchWrite applies all updates in one transaction: either every update
// lands or none does. Owners without a record are skipped, a learner
// deleted mid-repair has nothing left to repair.
func (r *ProgressRepository) BatchWrite(ctx context.Context, updates []catalog.ProgressUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if len(updates) > r.maxBatch {
		return fmt.Errorf("batch of %d exceeds the %d write cap", len(updates), r.maxBatch)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapStoreErr("begin progress batch", err)
	}
	defer tx.Rollback()

	query := tx.Rebind("UPDATE progress SET completed = ?, position = ?, updated_at = CURRENT_TIMESTAMP WHERE owner_id = ?")
	for _, u := range updates {
		completed, err := marshalCompleted(u.Completed)
		if err != nil {
			return fmt.Errorf("failed to encode completed set for owner %d: %w", u.OwnerID, err)
		}
		if _, err := tx.ExecContext(ctx, query, completed, u.Position, u.OwnerID); err != nil {
			return wrapStoreErr("write progress batch", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("commit progress batch", err)
	}
	return nil
}

// marshalCompleted encodes the completed set, mapping a nil slice to an
// empty JSON array rather than null.
func marshalCompleted(completed []int) (string, error) {
	if completed == nil {
		completed = []int{}
	}
	data, err := json.Marshal(completed)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// scanProgress reads one progress row: owner_id, completed, position,
// extra, created_at, updated_at.
func scanProgress(row interface{ Scan(...interface{}) error }) (*models.Progress, error) {
	var rec models.Progress
	var completed string
	var extra sql.NullString

	if err := row.Scan(&rec.OwnerID, &completed, &rec.Position, &extra,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	if completed != "" {
		if err := json.Unmarshal([]byte(completed), &rec.Completed); err != nil {
			return nil, fmt.Errorf("failed to parse completed set: %w", err)
		}
	}
	if extra.Valid && extra.String != "" {
		rec.Extra = json.RawMessage(extra.String)
	}
	return &rec, nil
}
