package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BalanceReason string

const (
	ReasonTaskCompletion     BalanceReason = "task_completion"
	ReasonReferralSignup     BalanceReason = "referral_signup"
	ReasonReferralActivation BalanceReason = "referral_activation"
	ReasonPayoutReservation  BalanceReason = "payout_reservation"
)

// BalanceEntry is the audit row written for every point mutation.
// Append-only: nothing updates or deletes these.
type BalanceEntry struct {
	ID           string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       int64         `gorm:"index;not null" json:"telegram_id"`
	Delta        int64         `gorm:"not null" json:"delta"`
	BalanceAfter int64         `gorm:"not null" json:"balance_after"`
	Reason       BalanceReason `gorm:"type:varchar(32);not null" json:"reason"`
	Ref          string        `gorm:"type:varchar(64)" json:"ref,omitempty"` // completion, referral or payout id
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (e *BalanceEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
