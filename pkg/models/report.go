package models

// LeaderboardEntry is one row of the completed-lessons ranking.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	OwnerID   int64  `json:"owner_id"`
	Name      string `json:"name"`
	Completed int    `json:"completed"`
	Position  int    `json:"position"`
}

// LessonCompletion reports how many learners finished one lesson.
type LessonCompletion struct {
	Seq       int     `json:"seq"`
	Title     string  `json:"title"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"` // Completed divided by the number of progress records
}

// TrendPoint is one day of the registration trend.
type TrendPoint struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}
