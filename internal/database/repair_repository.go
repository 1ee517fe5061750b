package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/example/lessonbot/pkg/models"
)

// RepairRepository persists half-open deletions so an interrupted
// repair survives restarts. It implements catalog.RepairJournal.
type RepairRepository struct {
	db *sqlx.DB
}

// NewRepairRepository creates a new repository instance.
func NewRepairRepository(db *sqlx.DB) *RepairRepository {
	return &RepairRepository{db: db}
}

// Add journals one pending repair. Re-adding the same lesson only moves
// its resume cursor forward, a retried repair never rewinds past owners
// it already wrote.
func (r *RepairRepository) Add(ctx context.Context, task models.RepairTask) error {
	query := r.db.Rebind(`
		INSERT INTO pending_repairs (lesson_id, seq, title, after_owner) VALUES (?, ?, ?, ?)
		ON CONFLICT (lesson_id) DO UPDATE SET after_owner = excluded.after_owner
		WHERE excluded.after_owner > pending_repairs.after_owner`)
	if _, err := r.db.ExecContext(ctx, query, task.LessonID, task.Seq, task.Title, task.AfterOwner); err != nil {
		return wrapStoreErr("journal pending repair", err)
	}
	return nil
}

// List returns pending repairs oldest first.
func (r *RepairRepository) List(ctx context.Context) ([]models.RepairTask, error) {
	var tasks []models.RepairTask
	if err := r.db.SelectContext(ctx, &tasks,
		"SELECT lesson_id, seq, title, after_owner, created_at FROM pending_repairs ORDER BY created_at ASC, seq ASC"); err != nil {
		return nil, wrapStoreErr("list pending repairs", err)
	}
	return tasks, nil
}

// Remove closes one journal entry after its repair committed.
func (r *RepairRepository) Remove(ctx context.Context, lessonID string) error {
	query := r.db.Rebind("DELETE FROM pending_repairs WHERE lesson_id = ?")
	if _, err := r.db.ExecContext(ctx, query, lessonID); err != nil {
		return wrapStoreErr("remove pending repair", err)
	}
	return nil
}
