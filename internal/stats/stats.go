package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/lessonbot/internal/logger"
	"github.com/example/lessonbot/pkg/models"
)

// LessonLister is the slice of the lesson store the reports read.
type LessonLister interface {
	List(ctx context.Context) ([]models.Lesson, error)
}

// ProgressLister is the slice of the progress store the reports read.
type ProgressLister interface {
	ListAll(ctx context.Context) ([]models.Progress, error)
}

// UserLister is the slice of the user store the reports read.
type UserLister interface {
	GetAll(ctx context.Context) ([]models.User, error)
}

// Service computes derived reports from store scans. Every method is
// read-only; nothing here mutates progress or the catalog.
type Service struct {
	lessons  LessonLister
	progress ProgressLister
	users    UserLister
	log      *logger.Logger
}

// NewService creates a new stats service over the given stores.
func NewService(lessons LessonLister, progress ProgressLister, users UserLister, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{lessons: lessons, progress: progress, users: users, log: log}
}

// Leaderboard ranks learners by completed lessons, most first. Ties
// break toward the learner further along, then by owner id so the
// ordering is stable. limit <= 0 means no limit.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var (
		records []models.Progress
		users   []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.progress.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.users.GetAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load leaderboard data: %w", err)
	}

	names := make(map[int64]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].DisplayName()
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		if a.CompletedCount() != b.CompletedCount() {
			return a.CompletedCount() > b.CompletedCount()
		}
		if a.Position != b.Position {
			return a.Position > b.Position
		}
		return a.OwnerID < b.OwnerID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	entries := make([]models.LeaderboardEntry, 0, len(records))
	for i := range records {
		rec := &records[i]
		name, ok := names[rec.OwnerID]
		if !ok {
			name = fmt.Sprintf("user %d", rec.OwnerID)
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:      i + 1,
			OwnerID:   rec.OwnerID,
			Name:      name,
			Completed: rec.CompletedCount(),
			Position:  rec.Position,
		})
	}
	return entries, nil
}

// CompletionRates reports, per lesson, how many learners finished it and
// which share of all progress records that is.
func (s *Service) CompletionRates(ctx context.Context) ([]models.LessonCompletion, error) {
	var (
		lessons []models.Lesson
		records []models.Progress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lessons, err = s.lessons.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.progress.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load completion data: %w", err)
	}

	counts := make(map[int]int, len(lessons))
	for i := range records {
		for _, seq := range records[i].Completed {
			counts[seq]++
		}
	}

	completions := make([]models.LessonCompletion, 0, len(lessons))
	for _, lesson := range lessons {
		c := models.LessonCompletion{
			Seq:       lesson.Seq,
			Title:     lesson.Title,
			Completed: counts[lesson.Seq],
		}
		if len(records) > 0 {
			c.Rate = float64(c.Completed) / float64(len(records))
		}
		completions = append(completions, c)
	}
	return completions, nil
}

// RegistrationTrend buckets user signups by calendar day (UTC). days
// limits the window counting back from today; days <= 0 returns the
// whole history. Days without signups are omitted.
func (s *Service) RegistrationTrend(ctx context.Context, days int) ([]models.TrendPoint, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	var cutoff time.Time
	if days > 0 {
		now := time.Now().UTC()
		cutoff = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, -(days - 1))
	}

	buckets := make(map[string]int)
	for i := range users {
		created := users[i].CreatedAt.UTC()
		if days > 0 && created.Before(cutoff) {
			continue
		}
		buckets[created.Format("2006-01-02")]++
	}

	points := make([]models.TrendPoint, 0, len(buckets))
	for date, count := range buckets {
		points = append(points, models.TrendPoint{Date: date, Count: count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}
