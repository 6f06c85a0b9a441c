package models

import (
	"time"
)

// Account is the per-user reward record (denormalized counters for rankings).
// UserID is the Telegram user id.
type Account struct {
	UserID      int64  `gorm:"primaryKey;autoIncrement:false" json:"telegram_id"`
	DisplayName string `gorm:"size:255" json:"name"`
	SearchName  string `gorm:"size:255;index" json:"-"`

	Points         int64 `gorm:"not null;default:0;index" json:"points"`
	TasksCompleted int64 `gorm:"not null;default:0" json:"tasks_completed"`
	Referrals      int64 `gorm:"not null;default:0;index" json:"referrals"`
	VIP            bool  `gorm:"column:vip;not null;default:false" json:"vip"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
