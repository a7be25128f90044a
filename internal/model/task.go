package model

import "time"

// Task statuses. A task only ever moves active → completed or gets
// deleted outright; there is no reopen.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// DefaultPriority applies when the caller does not pick one. Higher
// numbers are more urgent.
const DefaultPriority = 5

// DefaultCategory is the free-text label used when none is given.
const DefaultCategory = "general"

// Task represents a single item in the planner.
type Task struct {
	ID          uint  `gorm:"primaryKey"`
	UserID      int64 `gorm:"index"`
	Title       string
	Description string
	Priority    int    `gorm:"default:5"`
	Status      string `gorm:"default:active;index"`
	Deadline    *time.Time
	Category    string `gorm:"default:general"`
	AIAnalyzed  bool   `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
