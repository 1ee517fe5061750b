package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/lessonbot/internal/logger"
	"github.com/example/lessonbot/pkg/models"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 200 * time.Millisecond
)

// Engine owns lesson deletion and the progress repair that keeps every
// completed set and position pointer consistent with the surviving
// catalog. Store handles are injected; the engine holds no global state.
type Engine struct {
	lessons  LessonStore
	progress ProgressStore
	journal  RepairJournal
	log      *logger.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// Option adjusts engine behavior.
type Option func(*Engine)

// WithMaxRetries sets how many times a transient store failure is retried.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the initial delay between retries. The delay
// doubles on every attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.retryBackoff = d
		}
	}
}

// NewEngine builds an engine over the given stores. The journal may be
// nil, in which case half-open deletions are only reported, not queued.
func NewEngine(lessons LessonStore, progress ProgressStore, journal RepairJournal, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		lessons:      lessons,
		progress:     progress,
		journal:      journal,
		log:          log,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeleteResult reports what a completed deletion touched.
type DeleteResult struct {
	Lesson   *models.Lesson
	Affected int
}

// DeleteLesson removes one lesson and repairs every affected progress
// record. The lesson delete and the progress batch are two separate
// atomic operations: between them a record may transiently reference the
// removed sequence number. If the repair cannot commit, the lesson is
// already gone; the error is a PartialFailureError naming it and the
// journal records how far the sweep got, so a later drain resumes it
// from that point instead of starting over.
//
// Callers are expected to invoke this once per lesson at a time.
// Concurrent deletions of different lessons are safe because every
// repair attempt recomputes its write set from a fresh scan.
func (e *Engine) DeleteLesson(ctx context.Context, lessonID string) (*DeleteResult, error) {
	lesson, err := e.getLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	// The sequence number must be captured now, the row is gone after
	// the delete.
	deletedSeq := lesson.Seq

	if err := e.deleteLesson(ctx, lessonID); err != nil {
		return nil, err
	}

	// From here on the operation is committed to finishing the sweep.
	// Cancelling the caller's context means "retry later", not abort, so
	// the repair runs detached from it.
	repairCtx := context.WithoutCancel(ctx)

	affected, lastOwner, err := e.repairFrom(repairCtx, deletedSeq, 0)
	if err != nil {
		e.journalPending(repairCtx, lesson, lastOwner)
		e.log.Error("progress repair incomplete after lesson delete",
			"lesson_id", lesson.ID, "seq", deletedSeq, "written", affected, "error", err)
		return nil, &PartialFailureError{
			LessonID: lesson.ID,
			Title:    lesson.Title,
			Seq:      deletedSeq,
			Written:  affected,
			Err:      err,
		}
	}

	e.log.Info("lesson deleted",
		"lesson_id", lesson.ID, "seq", deletedSeq, "title", lesson.Title, "affected", affected)
	return &DeleteResult{Lesson: lesson, Affected: affected}, nil
}

// Repair sweeps all progress records for one removed sequence number:
// the number is dropped from completed sets, higher numbers in them move
// down to match the renumbered catalog, and positions strictly greater
// than it move down by one. Untouched records are excluded from the
// write set. Writes go out in sequential batches no larger than the
// store's cap, so the count it returns is how many updates actually
// committed.
//
// Run it once per deletion. A sweep that stops partway is resumed
// through the journal, whose cursor marks the last owner written: the
// resumed run skips owners at or below it, records that already carry
// post-repair values must not be shifted a second time.
func (e *Engine) Repair(ctx context.Context, deletedSeq int) (int, error) {
	written, _, err := e.repairFrom(ctx, deletedSeq, 0)
	return written, err
}

// repairFrom computes and applies the write set for one removed sequence
// number, skipping owners at or below afterOwner. Writes land in
// ascending owner order; the returned owner id is how far they got and
// becomes the journal cursor when the sweep has to stop early.
func (e *Engine) repairFrom(ctx context.Context, deletedSeq int, afterOwner int64) (int, int64, error) {
	if deletedSeq < 1 {
		return 0, afterOwner, fmt.Errorf("invalid sequence number %d", deletedSeq)
	}

	var records []models.Progress
	err := e.withRetry(ctx, "list progress records", func() error {
		var listErr error
		records, listErr = e.progress.ListAll(ctx)
		return listErr
	})
	if err != nil {
		return 0, afterOwner, fmt.Errorf("failed to scan progress records: %w", err)
	}

	updates := repairUpdates(records, deletedSeq)
	if afterOwner > 0 {
		remaining := updates[:0]
		for _, u := range updates {
			if u.OwnerID > afterOwner {
				remaining = append(remaining, u)
			}
		}
		updates = remaining
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].OwnerID < updates[j].OwnerID })
	if len(updates) == 0 {
		return 0, afterOwner, nil
	}

	written := 0
	lastOwner := afterOwner
	for _, batch := range partitionUpdates(updates, e.progress.MaxBatchSize()) {
		batch := batch
		err := e.withRetry(ctx, "commit progress batch", func() error {
			return e.progress.BatchWrite(ctx, batch)
		})
		if err != nil {
			return written, lastOwner, fmt.Errorf("failed to commit progress batch: %w", err)
		}
		written += len(batch)
		lastOwner = batch[len(batch)-1].OwnerID
	}

	return written, lastOwner, nil
}

// RunPendingRepairs drains the journal, resuming the sweep for every
// half-open deletion from its recorded cursor. An entry is removed only
// after its repair commits completely; a run that stops early again just
// moves the cursor forward. Returns how many entries were closed.
func (e *Engine) RunPendingRepairs(ctx context.Context) (int, error) {
	if e.journal == nil {
		return 0, nil
	}

	tasks, err := e.journal.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending repairs: %w", err)
	}

	closed := 0
	for _, task := range tasks {
		affected, lastOwner, err := e.repairFrom(ctx, task.Seq, task.AfterOwner)
		if err != nil {
			if lastOwner > task.AfterOwner {
				task.AfterOwner = lastOwner
				if jerr := e.journal.Add(ctx, task); jerr != nil {
					e.log.Error("failed to advance repair cursor",
						"lesson_id", task.LessonID, "seq", task.Seq, "error", jerr)
				}
			}
			return closed, fmt.Errorf("failed to repair after deleting lesson %q (seq %d): %w",
				task.Title, task.Seq, err)
		}
		if err := e.journal.Remove(ctx, task.LessonID); err != nil {
			return closed, fmt.Errorf("failed to close repair for lesson %q: %w", task.Title, err)
		}
		closed++
		e.log.Info("pending repair closed",
			"lesson_id", task.LessonID, "seq", task.Seq, "affected", affected)
	}

	return closed, nil
}

func (e *Engine) getLesson(ctx context.Context, lessonID string) (*models.Lesson, error) {
	var lesson *models.Lesson
	err := e.withRetry(ctx, "fetch lesson", func() error {
		var getErr error
		lesson, getErr = e.lessons.GetByID(ctx, lessonID)
		return getErr
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to fetch lesson %s: %w", lessonID, err)
	}
	return lesson, nil
}

func (e *Engine) deleteLesson(ctx context.Context, lessonID string) error {
	err := e.withRetry(ctx, "delete lesson", func() error {
		return e.lessons.Delete(ctx, lessonID)
	})
	if err != nil {
		if IsNotFound(err) {
			return ErrLessonNotFound
		}
		return fmt.Errorf("failed to delete lesson %s: %w", lessonID, err)
	}
	return nil
}

func (e *Engine) journalPending(ctx context.Context, lesson *models.Lesson, afterOwner int64) {
	if e.journal == nil {
		return
	}
	task := models.RepairTask{
		LessonID:   lesson.ID,
		Seq:        lesson.Seq,
		Title:      lesson.Title,
		AfterOwner: afterOwner,
	}
	if err := e.journal.Add(ctx, task); err != nil {
		e.log.Error("failed to journal pending repair",
			"lesson_id", lesson.ID, "seq", lesson.Seq, "error", err)
	}
}

// withRetry runs fn, retrying transient store failures with doubling
// backoff. Any other error stops the attempts immediately.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := e.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.log.Warn("retrying after transient store failure",
				"op", op, "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsStoreUnavailable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// repairUpdates computes the write set for one removed sequence number.
// A record is affected if its completed set changes under the
// renumbering, or its position points past the removed lesson; the two
// conditions are independent (a learner who skipped ahead has the
// pointer moved without ever completing the removed lesson). Unaffected
// records are left out, a no-op write would still cost a batch slot.
func repairUpdates(records []models.Progress, deletedSeq int) []ProgressUpdate {
	var updates []ProgressUpdate
	for i := range records {
		rec := &records[i]

		completed, affected := reindexCompleted(rec.Completed, deletedSeq)

		position := rec.Position
		if position > deletedSeq {
			// Lesson numbering is dense, so removing one lesson shifts
			// everything above it down by exactly one.
			position--
			affected = true
		}

		if !affected {
			continue
		}
		updates = append(updates, ProgressUpdate{
			OwnerID:   rec.OwnerID,
			Completed: completed,
			Position:  position,
		})
	}
	return updates
}

// reindexCompleted rewrites a completed set for the removal of one
// sequence number: the number itself is dropped, and every value above
// it moves down by one to keep naming the same lesson in the renumbered
// catalog. Returns a fresh copy and whether anything changed.
func reindexCompleted(completed []int, deletedSeq int) ([]int, bool) {
	out := make([]int, 0, len(completed))
	changed := false
	for _, v := range completed {
		switch {
		case v == deletedSeq:
			changed = true
		case v > deletedSeq:
			out = append(out, v-1)
			changed = true
		default:
			out = append(out, v)
		}
	}
	return out, changed
}

// partitionUpdates splits the write set into store-sized batches,
// preserving order.
func partitionUpdates(updates []ProgressUpdate, size int) [][]ProgressUpdate {
	if size <= 0 || len(updates) <= size {
		return [][]ProgressUpdate{updates}
	}
	batches := make([][]ProgressUpdate, 0, (len(updates)+size-1)/size)
	for start := 0; start < len(updates); start += size {
		end := start + size
		if end > len(updates) {
			end = len(updates)
		}
		batches = append(batches, updates[start:end])
	}
	return batches
}
