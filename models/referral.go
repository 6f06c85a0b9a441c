package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Referral tracks who indicated whom and whether the indicator was paid.
type Referral struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	IndicatorID int64  `gorm:"index;not null" json:"indicator_id"`
	IndicatedID int64  `gorm:"uniqueIndex;not null" json:"indicated_id"`

	ThrottleSignal   string     `gorm:"type:varchar(128);index;not null" json:"-"`
	Activated        bool       `gorm:"not null;default:false" json:"activated"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
	ActivationSignal string     `gorm:"type:varchar(128)" json:"-"`

	Timestamps
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ReferralThrottle counts registrations per origin signal.
type ReferralThrottle struct {
	Signal    string    `gorm:"primaryKey;type:varchar(128)"`
	Used      int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
