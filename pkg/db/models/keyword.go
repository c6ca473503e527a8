package models

import "time"

// Keyword is a single search query belonging to a task. Keywords are
// claimed in ascending ID order, which is their creation order.
type Keyword struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement;column:id"`
	TaskID      string     `gorm:"column:task_id;size:36;not null;index:idx_task_keywords_pending,priority:1"`
	Query       string     `gorm:"column:keyword;not null"`
	Processed   bool       `gorm:"column:processed;not null;default:false;index:idx_task_keywords_pending,priority:2"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
}

func (Keyword) TableName() string {
	return "task_keywords"
}
