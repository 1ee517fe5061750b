package models

import "time"

// RepairTask records a deletion whose progress repair has not committed
// yet. Tasks are kept until a repair run completes for the sequence
// number, so a restart never loses a half-open deletion.
type RepairTask struct {
	LessonID string `json:"lesson_id" db:"lesson_id"`
	Seq      int    `json:"seq" db:"seq"`
	Title    string `json:"title" db:"title"`
	// AfterOwner is the sweep's resume point: owners at or below it
	// already received their repair write. Zero means nothing landed.
	AfterOwner int64     `json:"after_owner" db:"after_owner"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
