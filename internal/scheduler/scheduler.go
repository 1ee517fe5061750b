package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/internal/logger"
	"github.com/example/lessonbot/pkg/models"
)

// Notifier delivers scheduled messages to learners and admins.
type Notifier interface {
	SendReminder(userID int64, remaining int) error
	SendAlert(message string) error
}

// Repairer runs the background consistency jobs. *catalog.Engine
// satisfies it.
type Repairer interface {
	RunPendingRepairs(ctx context.Context) (int, error)
	VerifyIntegrity(ctx context.Context) (*catalog.AuditReport, error)
}

// UserSource lists users due a reminder at a given hour.
type UserSource interface {
	UsersForNotification(ctx context.Context, hour int) ([]models.User, error)
}

// ProgressSource reads one learner's record.
type ProgressSource interface {
	GetByOwner(ctx context.Context, ownerID int64) (*models.Progress, error)
}

// LessonSource counts live lessons.
type LessonSource interface {
	Count(ctx context.Context) (int, error)
}

// Options bounds the reminder window to waking hours.
type Options struct {
	StartHour int // First hour of day reminders may go out
	EndHour   int // Last hour of day reminders may go out
}

// Scheduler manages the periodic background jobs: learner reminders,
// draining pending repairs, and the nightly integrity audit.
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	repairer  Repairer
	users     UserSource
	progress  ProgressSource
	lessons   LessonSource
	opts      Options
	log       *logger.Logger

	now func() time.Time
}

// New creates a new scheduler instance. Nothing runs until Start.
func New(notifier Notifier, repairer Repairer, users UserSource,
	progress ProgressSource, lessons LessonSource, opts Options, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		repairer:  repairer,
		users:     users,
		progress:  progress,
		lessons:   lessons,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Start begins running all scheduled tasks in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(5).Minutes().Do(s.drainPendingRepairs); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(1).Day().At("03:00").Do(s.runAudit); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders pings every learner who opted into the current
// hour and still has lessons left.
func (s *Scheduler) checkAndSendReminders() {
	ctx := context.Background()
	currentHour := s.now().UTC().Hour()

	// Не беспокоим по ночам
	if currentHour < s.opts.StartHour || currentHour > s.opts.EndHour {
		s.log.Debug("outside reminder window",
			"hour", currentHour, "start", s.opts.StartHour, "end", s.opts.EndHour)
		return
	}

	total, err := s.lessons.Count(ctx)
	if err != nil {
		s.log.Error("failed to count lessons", "error", err)
		return
	}
	if total == 0 {
		return
	}

	users, err := s.users.UsersForNotification(ctx, currentHour)
	if err != nil {
		s.log.Error("failed to get users for notification", "error", err)
		return
	}

	for _, user := range users {
		rec, err := s.progress.GetByOwner(ctx, user.ID)
		if err != nil {
			s.log.Error("failed to get progress", "user_id", user.ID, "error", err)
			continue
		}

		remaining := total - rec.CompletedCount()
		if remaining <= 0 {
			continue
		}

		if err := s.notifier.SendReminder(user.ID, remaining); err != nil {
			s.log.Error("failed to send reminder", "user_id", user.ID, "error", err)
		}
	}
}

// drainPendingRepairs retries every half-open deletion left in the
// journal.
func (s *Scheduler) drainPendingRepairs() {
	ctx := context.Background()
	closed, err := s.repairer.RunPendingRepairs(ctx)
	if err != nil {
		s.log.Error("failed to drain pending repairs", "closed", closed, "error", err)
		return
	}
	if closed > 0 {
		s.log.Info("pending repairs drained", "closed", closed)
	}
}

// runAudit sweeps both stores and alerts admins when the catalog and
// progress records disagree.
func (s *Scheduler) runAudit() {
	ctx := context.Background()
	report, err := s.repairer.VerifyIntegrity(ctx)
	if err != nil {
		s.log.Error("integrity audit failed", "error", err)
		return
	}
	if report.Clean() {
		s.log.Info("integrity audit clean",
			"lessons", report.Lessons, "records", report.Records)
		return
	}

	if err := s.notifier.SendAlert("⚠️ " + report.Summary()); err != nil {
		s.log.Error("failed to send audit alert", "error", err)
	}
}
