package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/pkg/models"
)

// LessonRepository handles database operations for the lesson catalog.
// It implements catalog.LessonStore.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new repository instance over the given
// database handle.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = "id, seq, title, content, created_at, updated_at"

// GetByID returns the lesson with the given opaque id.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := r.db.Rebind("SELECT " + lessonColumns + " FROM lessons WHERE id = ?")
	lesson, err := scanLesson(r.db.QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrLessonNotFound
		}
		return nil, wrapStoreErr("get lesson by id", err)
	}
	return lesson, nil
}

// GetBySeq returns the lesson at the given sequence number.
func (r *LessonRepository) GetBySeq(ctx context.Context, seq int) (*models.Lesson, error) {
	query := r.db.Rebind("SELECT " + lessonColumns + " FROM lessons WHERE seq = ?")
	lesson, err := scanLesson(r.db.QueryRowxContext(ctx, query, seq))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrLessonNotFound
		}
		return nil, wrapStoreErr("get lesson by seq", err)
	}
	return lesson, nil
}

// List returns all lessons ordered by sequence number.
func (r *LessonRepository) List(ctx context.Context) ([]models.Lesson, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT "+lessonColumns+" FROM lessons ORDER BY seq ASC")
	if err != nil {
		return nil, wrapStoreErr("list lessons", err)
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, wrapStoreErr("scan lesson", err)
		}
		lessons = append(lessons, *lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("list lessons", err)
	}
	return lessons, nil
}

// Count returns the number of live lessons.
func (r *LessonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM lessons"); err != nil {
		return 0, wrapStoreErr("count lessons", err)
	}
	return count, nil
}

// Create appends a lesson at the end of the curriculum. The id is
// assigned here and the sequence number is always the next free one, so
// the numbering stays dense by construction.
func (r *LessonRepository) Create(ctx context.Context, title string, content json.RawMessage) (*models.Lesson, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("lesson title must not be empty")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr("begin lesson create", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.GetContext(ctx, &next, "SELECT COALESCE(MAX(seq), 0) + 1 FROM lessons"); err != nil {
		return nil, wrapStoreErr("assign lesson sequence", err)
	}

	lesson := &models.Lesson{
		ID:      uuid.NewString(),
		Seq:     next,
		Title:   title,
		Content: content,
	}

	var contentVal interface{}
	if len(content) > 0 {
		contentVal = string(content)
	}

	query := tx.Rebind("INSERT INTO lessons (id, seq, title, content) VALUES (?, ?, ?, ?)")
	if _, err := tx.ExecContext(ctx, query, lesson.ID, lesson.Seq, lesson.Title, contentVal); err != nil {
		return nil, wrapStoreErr("insert lesson", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr("commit lesson create", err)
	}
	return lesson, nil
}

// Delete removes a lesson and closes its numbering gap in the same
// transaction, so the surviving catalog is dense the moment the delete
// is visible.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapStoreErr("begin lesson delete", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.GetContext(ctx, &seq, tx.Rebind("SELECT seq FROM lessons WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.ErrLessonNotFound
		}
		return wrapStoreErr("read lesson for delete", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM lessons WHERE id = ?"), id)
	if err != nil {
		return wrapStoreErr("delete lesson", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("delete lesson", err)
	}
	if rows == 0 {
		return catalog.ErrLessonNotFound
	}

	// Close the numbering gap. Negative staging keeps the unique index
	// on seq satisfied while the block above the gap moves down, the
	// update order within one statement is not guaranteed.
	if _, err := tx.ExecContext(ctx, tx.Rebind("UPDATE lessons SET seq = -(seq - 1) WHERE seq > ?"), seq); err != nil {
		return wrapStoreErr("shift lesson sequence", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE lessons SET seq = -seq, updated_at = CURRENT_TIMESTAMP WHERE seq < 0"); err != nil {
		return wrapStoreErr("shift lesson sequence", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("commit lesson delete", err)
	}
	return nil
}

// scanLesson reads one lesson row: id, seq, title, content, created_at,
// updated_at.
func scanLesson(row interface{ Scan(...interface{}) error }) (*models.Lesson, error) {
	var lesson models.Lesson
	var content sql.NullString

	if err := row.Scan(&lesson.ID, &lesson.Seq, &lesson.Title, &content,
		&lesson.CreatedAt, &lesson.UpdatedAt); err != nil {
		return nil, err
	}

	if content.Valid && content.String != "" {
		lesson.Content = json.RawMessage(content.String)
	}
	return &lesson, nil
}
