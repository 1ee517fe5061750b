package catalog

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/example/lessonbot/pkg/models"
)

// AuditReport summarizes an integrity sweep over both stores. A clean
// report means every completed reference resolves to a live lesson,
// every position is inside the valid range, and the lesson numbering has
// no gaps.
type AuditReport struct {
	Lessons int
	Records int

	// DanglingRefs maps an owner to completed sequence numbers with no
	// live lesson.
	DanglingRefs map[int64][]int
	// BadPositions maps an owner to a position outside 1..maxSeq+1.
	BadPositions map[int64]int
	// SequenceGaps lists missing numbers inside the live 1..maxSeq range.
	SequenceGaps []int
}

// Clean reports whether the sweep found nothing wrong.
func (r *AuditReport) Clean() bool {
	return len(r.DanglingRefs) == 0 && len(r.BadPositions) == 0 && len(r.SequenceGaps) == 0
}

// Summary renders the report as a short human-readable string.
func (r *AuditReport) Summary() string {
	if r.Clean() {
		return fmt.Sprintf("catalog consistent: %d lessons, %d progress records", r.Lessons, r.Records)
	}
	return fmt.Sprintf("catalog inconsistent: %d dangling refs, %d bad positions, %d sequence gaps (%d lessons, %d records)",
		len(r.DanglingRefs), len(r.BadPositions), len(r.SequenceGaps), r.Lessons, r.Records)
}

// VerifyIntegrity checks the global invariant without mutating anything.
// It reads both stores concurrently and compares progress references
// against the live catalog. Run it between repairs, not during one: the
// two-phase window of an in-flight deletion legitimately shows up here
// as dangling references.
func (e *Engine) VerifyIntegrity(ctx context.Context) (*AuditReport, error) {
	var (
		lessons []models.Lesson
		records []models.Progress
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lessons, err = e.lessons.List(gctx)
		if err != nil {
			return fmt.Errorf("failed to list lessons: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = e.progress.ListAll(gctx)
		if err != nil {
			return fmt.Errorf("failed to list progress records: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &AuditReport{
		Lessons:      len(lessons),
		Records:      len(records),
		DanglingRefs: make(map[int64][]int),
		BadPositions: make(map[int64]int),
	}

	live := make(map[int]bool, len(lessons))
	maxSeq := 0
	for _, lesson := range lessons {
		live[lesson.Seq] = true
		if lesson.Seq > maxSeq {
			maxSeq = lesson.Seq
		}
	}

	for seq := 1; seq <= maxSeq; seq++ {
		if !live[seq] {
			report.SequenceGaps = append(report.SequenceGaps, seq)
		}
	}

	for i := range records {
		rec := &records[i]
		for _, seq := range rec.Completed {
			if !live[seq] {
				report.DanglingRefs[rec.OwnerID] = append(report.DanglingRefs[rec.OwnerID], seq)
			}
		}
		// Position may point one past the last lesson: the learner
		// finished the whole curriculum.
		if rec.Position < 1 || rec.Position > maxSeq+1 {
			report.BadPositions[rec.OwnerID] = rec.Position
		}
	}

	for owner := range report.DanglingRefs {
		sort.Ints(report.DanglingRefs[owner])
	}

	if !report.Clean() {
		e.log.Warn("integrity audit found inconsistencies",
			"dangling_owners", len(report.DanglingRefs),
			"bad_positions", len(report.BadPositions),
			"sequence_gaps", len(report.SequenceGaps))
	}

	return report, nil
}
