package models

import (
	"encoding/json"
	"time"
)

// Progress represents a learner's advancement state against the lesson catalog.
// There is exactly one record per learner, created on enrollment.
type Progress struct {
	OwnerID   int64           `json:"owner_id" db:"owner_id"`
	Completed []int           `json:"completed" db:"completed"` // Sequence numbers of finished lessons, set semantics
	Position  int             `json:"position" db:"position"`   // Next lesson to attempt, always >= 1
	Extra     json.RawMessage `json:"extra,omitempty" db:"extra"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// HasCompleted reports whether the lesson with the given sequence number
// is in the completed set.
func (p *Progress) HasCompleted(seq int) bool {
	for _, v := range p.Completed {
		if v == seq {
			return true
		}
	}
	return false
}

// AddCompleted inserts a sequence number into the completed set and
// reports whether it was newly added.
func (p *Progress) AddCompleted(seq int) bool {
	if p.HasCompleted(seq) {
		return false
	}
	p.Completed = append(p.Completed, seq)
	return true
}

// CompletedCount returns the size of the completed set.
func (p *Progress) CompletedCount() int {
	return len(p.Completed)
}
