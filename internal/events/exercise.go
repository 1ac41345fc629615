// Package events defines the messages emitted when the exercise log changes.
package events

import "time"

// ExerciseLogged is emitted after an exercise has been appended to a user's log.
type ExerciseLogged struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Description string    `json:"description"`
	DurationMin int       `json:"duration_min"`
	Date        string    `json:"date"`
	LogCount    int       `json:"log_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}
