package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Completion = user completed a task on a calendar day.
// The (user, task, day) unique index is the double-credit guard.
type Completion struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:uq_completion_user_task_day,priority:1" json:"telegram_id"`
	TaskID    string    `gorm:"type:varchar(36);not null;uniqueIndex:uq_completion_user_task_day,priority:2;index" json:"task_id"`
	Day       string    `gorm:"type:varchar(10);not null;uniqueIndex:uq_completion_user_task_day,priority:3" json:"day"` // YYYY-MM-DD
	Points    int64     `gorm:"not null" json:"points"`                                                                  // snapshot of the task value
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Completion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
