package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lucremais-task/models"
	"lucremais-task/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PayoutService struct {
	DB       *gorm.DB
	Rules    Rules
	Clock    *Clock
	Notifier Notifier
}

func NewPayoutService(db *gorm.DB, rules Rules, clock *Clock, notifier Notifier) *PayoutService {
	if clock == nil {
		clock = NewClock(time.UTC)
	}
	return &PayoutService{DB: db, Rules: rules, Clock: clock, Notifier: orNop(notifier)}
}

// RequestPayout reserves the user's whole balance for a PIX transfer. The
// balance drops to zero in the same transaction that inserts the pending
// request; at most one request per user per day.
func (s *PayoutService) RequestPayout(ctx context.Context, userID int64, destinationKey, taxID string) (*models.PayoutRequest, error) {
	destinationKey = strings.TrimSpace(destinationKey)
	taxID = utils.OnlyDigits(taxID)
	if !utils.ValidPixKey(destinationKey) || !utils.ValidCPF(taxID) {
		return nil, ErrInvalidDestination
	}

	now := s.Clock.Now()
	day := now.Format(DayLayout)
	var req *models.PayoutRequest

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := loadAccount(tx, userID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.PayoutRequest{}).Where("user_id = ? AND day = ?", userID, day).Count(&existing).Error; err != nil {
			return fmt.Errorf("check payout for %d on %s: %w", userID, day, err)
		}
		if existing > 0 {
			return ErrAlreadyRequestedToday
		}
		if acc.Points < s.Rules.PayoutThreshold(acc.VIP) {
			return ErrInsufficientBalance
		}

		req = &models.PayoutRequest{
			ID:             uuid.NewString(),
			UserID:         userID,
			Day:            day,
			Points:         acc.Points,
			Value:          s.Rules.PayoutValue(acc.Points),
			DestinationKey: destinationKey,
			TaxID:          taxID,
			Status:         models.PayoutStatusPending,
			RequestedAt:    now.UTC(),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
			DoNothing: true,
		}).Create(req)
		if res.Error != nil {
			return fmt.Errorf("insert payout for %d: %w", userID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRequestedToday
		}

		_, err = adjustBalanceTx(tx, userID, -acc.Points, models.ReasonPayoutReservation, req.ID, WithExpectedBalance(acc.Points))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[PAYOUT] 💸 Requested: user=%d points=%d value=%s key=%s", userID, req.Points, req.Value.StringFixed(2), utils.PixKeyType(destinationKey))
	s.Notifier.Notify(userID, fmt.Sprintf("💸 Saque de %s solicitado! Aguarde a análise.", utils.FormatBRL(req.Value)))
	return req, nil
}

// SetPayoutStatus decides a pending request. A decided request never changes
// again. Rejection does not refund the reserved points.
func (s *PayoutService) SetPayoutStatus(ctx context.Context, requestID string, status models.PayoutStatus, comment string) (*models.PayoutRequest, error) {
	if status != models.PayoutStatusApproved && status != models.PayoutStatusRejected {
		return nil, invalidInput("status must be approved or rejected, got %q", status)
	}

	db := s.DB.WithContext(ctx)
	now := time.Now().UTC()
	res := db.Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", requestID, models.PayoutStatusPending).
		Updates(map[string]interface{}{
			"status":        status,
			"admin_comment": strings.TrimSpace(comment),
			"decided_at":    now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update payout %s: %w", requestID, res.Error)
	}

	req, err := s.GetPayout(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrPayoutDecided
	}

	log.Printf("[PAYOUT] 📝 %s -> %s (user=%d)", requestID, status, req.UserID)
	switch status {
	case models.PayoutStatusApproved:
		s.Notifier.Notify(req.UserID, fmt.Sprintf("✅ Seu saque de %s foi aprovado!", utils.FormatBRL(req.Value)))
	case models.PayoutStatusRejected:
		msg := "❌ Seu saque foi recusado."
		if req.AdminComment != "" {
			msg += " Motivo: " + req.AdminComment
		}
		s.Notifier.Notify(req.UserID, msg)
	}
	return req, nil
}

func (s *PayoutService) GetPayout(ctx context.Context, requestID string) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	if err := s.DB.WithContext(ctx).Where("id = ?", requestID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("load payout %s: %w", requestID, err)
	}
	return &req, nil
}

// ListPayouts returns a user's payout history, newest first.
func (s *PayoutService) ListPayouts(ctx context.Context, userID int64) ([]models.PayoutRequest, error) {
	var out []models.PayoutRequest
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list payouts for %d: %w", userID, err)
	}
	return out, nil
}

// ListPendingPayouts returns the admin queue, oldest first.
func (s *PayoutService) ListPendingPayouts(ctx context.Context) ([]models.PayoutRequest, error) {
	var out []models.PayoutRequest
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.PayoutStatusPending).
		Order("requested_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list pending payouts: %w", err)
	}
	return out, nil
}

// ListPayoutsBetween returns requests of one status (any when empty) with a
// day in [from, to].
func (s *PayoutService) ListPayoutsBetween(ctx context.Context, status models.PayoutStatus, from, to string) ([]models.PayoutRequest, error) {
	db := s.DB.WithContext(ctx).Model(&models.PayoutRequest{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if from != "" {
		if _, err := ParseDay(from); err != nil {
			return nil, err
		}
		db = db.Where("day >= ?", from)
	}
	if to != "" {
		if _, err := ParseDay(to); err != nil {
			return nil, err
		}
		db = db.Where("day <= ?", to)
	}
	var out []models.PayoutRequest
	if err := db.Order("requested_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list payouts %s..%s: %w", from, to, err)
	}
	return out, nil
}
