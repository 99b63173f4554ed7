package model

import "time"

// Task is one planner item on a single day. Tasks sharing a RepeatableID
// form a chain of consecutive days created from one repeating task.
type Task struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"index:idx_task_user_date"`
	Date           time.Time `gorm:"type:date;index:idx_task_user_date"`
	Title          string
	Note           string
	IsCompleted    bool    `gorm:"default:false"`
	Order          int     `gorm:"column:position"`
	RepeatableID   *string `gorm:"index"`
	RepeatableDays *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsRepeating reports whether the task belongs to a chain.
func (t Task) IsRepeating() bool {
	return t.RepeatableID != nil && *t.RepeatableID != ""
}
