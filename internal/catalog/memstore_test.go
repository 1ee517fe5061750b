package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/lessonbot/pkg/models"
)

// memLessons is an in-memory LessonStore mirroring the contract,
// including the dense renumbering a delete performs.
type memLessons struct {
	mu      sync.Mutex
	lessons []models.Lesson // sorted by Seq
	deletes int
	getErr  error
	delErr  error
}

func newMemLessons(titles ...string) *memLessons {
	s := &memLessons{}
	for i, title := range titles {
		s.lessons = append(s.lessons, models.Lesson{
			ID:    fmt.Sprintf("lesson-%d", i+1),
			Seq:   i + 1,
			Title: title,
		})
	}
	return s
}

func (s *memLessons) GetByID(_ context.Context, id string) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, l := range s.lessons {
		if l.ID == id {
			out := l
			return &out, nil
		}
	}
	return nil, ErrLessonNotFound
}

func (s *memLessons) List(_ context.Context) ([]models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Lesson, len(s.lessons))
	copy(out, s.lessons)
	return out, nil
}

func (s *memLessons) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	for i, l := range s.lessons {
		if l.ID == id {
			deletedSeq := l.Seq
			s.lessons = append(s.lessons[:i], s.lessons[i+1:]...)
			for j := range s.lessons {
				if s.lessons[j].Seq > deletedSeq {
					s.lessons[j].Seq--
				}
			}
			s.deletes++
			return nil
		}
	}
	return ErrLessonNotFound
}

func (s *memLessons) liveSeqs() map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make(map[int]bool, len(s.lessons))
	for _, l := range s.lessons {
		live[l.Seq] = true
	}
	return live
}

// memProgress is an in-memory ProgressStore with per-call hooks for
// fault injection and counters for write assertions.
type memProgress struct {
	mu       sync.Mutex
	records  map[int64]models.Progress
	maxBatch int

	listCalls  int
	writeCalls int
	writes     int
	batchSizes []int
	written    map[int64]int // owner -> times included in a committed batch

	listErr  func(call int) error
	writeErr func(call int, updates []ProgressUpdate) error
}

func newMemProgress(maxBatch int, records ...models.Progress) *memProgress {
	s := &memProgress{
		records:  make(map[int64]models.Progress, len(records)),
		maxBatch: maxBatch,
		written:  make(map[int64]int),
	}
	for _, r := range records {
		s.records[r.OwnerID] = r
	}
	return s
}

func (s *memProgress) ListAll(_ context.Context) ([]models.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		if err := s.listErr(s.listCalls); err != nil {
			return nil, err
		}
	}
	out := make([]models.Progress, 0, len(s.records))
	for _, r := range s.records {
		r.Completed = append([]int(nil), r.Completed...)
		out = append(out, r)
	}
	return out, nil
}

func (s *memProgress) BatchWrite(_ context.Context, updates []ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if len(updates) > s.maxBatch {
		return fmt.Errorf("batch of %d exceeds cap %d", len(updates), s.maxBatch)
	}
	if s.writeErr != nil {
		// A failed call applies nothing, the batch is all or none.
		if err := s.writeErr(s.writeCalls, updates); err != nil {
			return err
		}
	}
	for _, u := range updates {
		rec, ok := s.records[u.OwnerID]
		if !ok {
			continue
		}
		rec.Completed = append([]int(nil), u.Completed...)
		rec.Position = u.Position
		s.records[u.OwnerID] = rec
		s.written[u.OwnerID]++
	}
	s.writes += len(updates)
	s.batchSizes = append(s.batchSizes, len(updates))
	return nil
}

func (s *memProgress) MaxBatchSize() int { return s.maxBatch }

func (s *memProgress) get(owner int64) models.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[owner]
}

// memJournal is an in-memory RepairJournal.
type memJournal struct {
	mu    sync.Mutex
	tasks []models.RepairTask
}

func (j *memJournal) Add(_ context.Context, task models.RepairTask) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, t := range j.tasks {
		if t.LessonID == task.LessonID {
			if task.AfterOwner > t.AfterOwner {
				j.tasks[i].AfterOwner = task.AfterOwner
			}
			return nil
		}
	}
	j.tasks = append(j.tasks, task)
	return nil
}

func (j *memJournal) List(_ context.Context) ([]models.RepairTask, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.RepairTask, len(j.tasks))
	copy(out, j.tasks)
	return out, nil
}

func (j *memJournal) Remove(_ context.Context, lessonID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, t := range j.tasks {
		if t.LessonID == lessonID {
			j.tasks = append(j.tasks[:i], j.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (j *memJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.tasks)
}
