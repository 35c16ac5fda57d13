package session

import "time"

// Status tracks the lifecycle of a session row.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Session summarises one connection-bound conversation. The row is inserted
// when the connection opens and mutated exactly once when it closes.
type Session struct {
	ID              string     `json:"sessionId"`
	UserID          string     `json:"userId"`
	Status          Status     `json:"status"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
	Summary         string     `json:"summary,omitempty"`
}
