package model

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task. Transitions are user-driven only.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusDone      TaskStatus = "done"
	StatusPostponed TaskStatus = "postponed"
	StatusCancelled TaskStatus = "cancelled"
)

// Task represents a single item in the diary.
type Task struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	Category              Category   `json:"category"`
	Deadline              *time.Time `json:"deadline,omitempty"`
	InitialPostponeReason string     `json:"initialPostponeReason,omitempty"`
	Status                TaskStatus `json:"status"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// IsOpen reports whether the task still shows up in the active list.
func (t Task) IsOpen() bool {
	return t.Status == StatusPending || t.Status == StatusPostponed
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
