package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusApproved PayoutStatus = "approved"
	PayoutStatusRejected PayoutStatus = "rejected"
)

// PayoutRequest reserves a user's whole balance for a PIX transfer.
// At most one per user per day.
type PayoutRequest struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID int64  `gorm:"not null;uniqueIndex:uq_payout_user_day,priority:1" json:"telegram_id"`
	Day    string `gorm:"type:varchar(10);not null;uniqueIndex:uq_payout_user_day,priority:2" json:"day"`

	Points         int64           `gorm:"not null" json:"points"`
	Value          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"value"`
	DestinationKey string          `gorm:"type:varchar(140);not null" json:"pix_key"`
	TaxID          string          `gorm:"type:varchar(14);not null" json:"-"`

	Status       PayoutStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	AdminComment string       `gorm:"type:text" json:"admin_comment,omitempty"`
	RequestedAt  time.Time    `gorm:"not null" json:"requested_at"`
	DecidedAt    *time.Time   `json:"decided_at,omitempty"`
}

func (p *PayoutRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
