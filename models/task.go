package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleAny marks a task offered every day of the week.
const ScheduleAny = "any"

var weekdaySchedules = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NormalizeSchedule lower-cases a schedule value and reports whether it is valid.
func NormalizeSchedule(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ScheduleAny, true
	}
	if s == ScheduleAny {
		return s, true
	}
	_, ok := weekdaySchedules[s]
	return s, ok
}

// Task is a reward-bearing catalog entry
type Task struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Slug     string `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Link     string `gorm:"type:text;not null" json:"link"`
	Schedule string `gorm:"type:varchar(16);not null;default:'any'" json:"schedule"` // "any" or a weekday name
	Points   int64  `gorm:"not null" json:"points"`
	Active   bool   `gorm:"not null;default:true;index" json:"active"`

	Timestamps
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// AppliesOn reports whether the task is offered on the given weekday.
func (t *Task) AppliesOn(day time.Weekday) bool {
	if t.Schedule == ScheduleAny || t.Schedule == "" {
		return true
	}
	wd, ok := weekdaySchedules[t.Schedule]
	return ok && wd == day
}

// DailyTask is a task as seen by one user on one day.
type DailyTask struct {
	Task
	Done bool `json:"done"`
}
