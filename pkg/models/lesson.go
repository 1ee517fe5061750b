package models

import (
	"encoding/json"
	"time"
)

// Lesson represents one unit of the ordered curriculum
type Lesson struct {
	ID        string          `json:"id" db:"id"` // Opaque identifier assigned by the store
	Seq       int             `json:"seq" db:"seq"`
	Title     string          `json:"title" db:"title"`
	Content   json.RawMessage `json:"content,omitempty" db:"content"` // Exercises and teaching material, opaque to the engine
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
