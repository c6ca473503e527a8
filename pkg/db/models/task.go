package models

import (
	"time"
)

// TaskStatus represents the lifecycle state of a search task
type TaskStatus string

const (
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether the status can no longer change
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one product search job. The credential is stored only as a
// SHA-256 hex digest.
type Task struct {
	ID             string     `gorm:"primaryKey;column:id;size:36"`
	ProductName    string     `gorm:"column:product_name;not null"`
	CredentialHash string     `gorm:"column:api_key_hash;size:64;not null"`
	MinSubscribers int64      `gorm:"column:min_subscribers;not null"`
	MinViews       int64      `gorm:"column:min_views;not null"`
	MaxResults     int        `gorm:"column:max_results;not null"`
	Status         TaskStatus `gorm:"column:status;size:16;not null;index"`
	Progress       int        `gorm:"column:progress;not null;default:0"`
	ErrorMessage   string     `gorm:"column:error_message"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
}

// TableName specifies the table name for GORM
func (Task) TableName() string {
	return "tasks"
}
