package catalog

import (
	"context"

	"github.com/example/lessonbot/pkg/models"
)

// LessonStore is the catalog side of the persistence layer. Implementations
// return ErrLessonNotFound when the id does not resolve and wrap transient
// failures in StoreUnavailableError.
type LessonStore interface {
	// GetByID returns the lesson with the given opaque id.
	GetByID(ctx context.Context, id string) (*models.Lesson, error)
	// List returns all live lessons ordered by sequence number.
	List(ctx context.Context) ([]models.Lesson, error)
	// Delete removes the lesson and closes its numbering gap in the same
	// atomic operation, so surviving lessons stay dense. Deleting an
	// absent id is ErrLessonNotFound.
	Delete(ctx context.Context, id string) error
}

// ProgressUpdate is one record's replacement state inside an atomic batch.
type ProgressUpdate struct {
	OwnerID   int64
	Completed []int
	Position  int
}

// ProgressStore is the progress side of the persistence layer.
type ProgressStore interface {
	// ListAll returns every progress record.
	ListAll(ctx context.Context) ([]models.Progress, error)
	// BatchWrite applies all updates atomically: either every update
	// lands or none does. Callers must not exceed MaxBatchSize updates
	// per call.
	BatchWrite(ctx context.Context, updates []ProgressUpdate) error
	// MaxBatchSize is the store-imposed cap on writes per atomic call.
	MaxBatchSize() int
}

// RepairJournal durably records deletions whose repair has not committed,
// so they survive restarts and can be resumed. Adding a lesson that is
// already journaled moves its cursor forward, never back.
type RepairJournal interface {
	Add(ctx context.Context, task models.RepairTask) error
	List(ctx context.Context) ([]models.RepairTask, error)
	Remove(ctx context.Context, lessonID string) error
}
