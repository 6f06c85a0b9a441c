package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"lucremais-task/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnknownSignal replaces an empty throttle signal so that requests without an
// origin share one bucket instead of bypassing the throttle.
const UnknownSignal = "unknown"

type ReferralService struct {
	DB       *gorm.DB
	Rules    Rules
	Notifier Notifier
}

func NewReferralService(db *gorm.DB, rules Rules, notifier Notifier) *ReferralService {
	return &ReferralService{DB: db, Rules: rules, Notifier: orNop(notifier)}
}

// maxSignalLen matches the varchar(128) signal columns, counted in characters.
const maxSignalLen = 128

func normalizeSignal(signal string) string {
	signal = strings.TrimSpace(strings.ToValidUTF8(signal, ""))
	if signal == "" {
		return UnknownSignal
	}
	if utf8.RuneCountInString(signal) > maxSignalLen {
		signal = string([]rune(signal)[:maxSignalLen])
	}
	return signal
}

// RegisterReferral records that indicatedID was brought in by indicatorID and
// credits the indicated user's signup bonus. The indicator is paid later, by
// ActivateReferral.
func (s *ReferralService) RegisterReferral(ctx context.Context, indicatedID, indicatorID int64, signal string) (*models.Referral, error) {
	if indicatedID == indicatorID {
		return nil, ErrSelfReferral
	}
	signal = normalizeSignal(signal)

	ref := &models.Referral{
		ID:             uuid.NewString(),
		IndicatorID:    indicatorID,
		IndicatedID:    indicatedID,
		ThrottleSignal: signal,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadAccount(tx, indicatedID); err != nil {
			return err
		}
		if _, err := loadAccount(tx, indicatorID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Referral{}).Where("indicated_id = ?", indicatedID).Count(&existing).Error; err != nil {
			return fmt.Errorf("check referral for %d: %w", indicatedID, err)
		}
		if existing > 0 {
			return ErrAlreadyIndicated
		}

		if err := s.consumeThrottle(tx, signal); err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "indicated_id"}},
			DoNothing: true,
		}).Create(ref)
		if res.Error != nil {
			return fmt.Errorf("insert referral for %d: %w", indicatedID, res.Error)
		}
		if res.RowsAffected == 0 {
			// lost the race to a concurrent registration; rollback frees the throttle slot
			return ErrAlreadyIndicated
		}

		if s.Rules.SignupBonus > 0 {
			if _, err := adjustBalanceTx(tx, indicatedID, s.Rules.SignupBonus, models.ReasonReferralSignup, ref.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if KindOf(err) == KindThrottleExceeded {
			log.Printf("[REFERRAL] 🚫 Throttle hit: signal=%s indicated=%d indicator=%d", signal, indicatedID, indicatorID)
		}
		return nil, err
	}

	log.Printf("[REFERRAL] ✅ Registered: %d indicated by %d (signal=%s)", indicatedID, indicatorID, signal)
	if s.Rules.SignupBonus > 0 {
		s.Notifier.Notify(indicatedID, fmt.Sprintf("🎉 Indicação registrada! Você ganhou %d pontos.", s.Rules.SignupBonus))
	}
	return ref, nil
}

// consumeThrottle takes one slot from the signal's counter with a guarded
// UPDATE, so concurrent registrations can never exceed the ceiling.
func (s *ReferralService) consumeThrottle(tx *gorm.DB, signal string) error {
	if s.Rules.ThrottleCeiling <= 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signal"}},
		DoNothing: true,
	}).Create(&models.ReferralThrottle{Signal: signal}).Error; err != nil {
		return fmt.Errorf("init throttle %s: %w", signal, err)
	}

	res := tx.Model(&models.ReferralThrottle{}).
		Where("signal = ? AND used < ?", signal, s.Rules.ThrottleCeiling).
		Update("used", gorm.Expr("used + 1"))
	if res.Error != nil {
		return fmt.Errorf("consume throttle %s: %w", signal, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrThrottleExceeded
	}
	return nil
}

// Activation is the outcome of ActivateReferral.
type Activation struct {
	Activated   bool   `json:"activated"`
	ReferralID  string `json:"referral_id,omitempty"`
	IndicatorID int64  `json:"indicator_id,omitempty"`
}

// ActivateReferral pays the indicator of indicatedID once, provided the
// indicated user has completed at least one task. Calling it again, before
// any completion, or for a user nobody indicated, is a no-op.
func (s *ReferralService) ActivateReferral(ctx context.Context, indicatedID int64, signal string) (*Activation, error) {
	var act *Activation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		act, err = s.activateTx(tx, indicatedID, signal)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifyActivation(act)
	return act, nil
}

// activateTx flips the activation flag with compare-and-set and credits the
// indicator in the same transaction. Only users with a completion qualify.
func (s *ReferralService) activateTx(tx *gorm.DB, indicatedID int64, signal string) (*Activation, error) {
	now := time.Now().UTC()
	res := tx.Model(&models.Referral{}).
		Where("indicated_id = ? AND activated = ?", indicatedID, false).
		Where("EXISTS (SELECT 1 FROM completions WHERE completions.user_id = ?)", indicatedID).
		Updates(map[string]interface{}{
			"activated":         true,
			"activated_at":      now,
			"activation_signal": normalizeSignal(signal),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("activate referral of %d: %w", indicatedID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &Activation{}, nil
	}

	var ref models.Referral
	if err := tx.Where("indicated_id = ?", indicatedID).First(&ref).Error; err != nil {
		return nil, fmt.Errorf("reload referral of %d: %w", indicatedID, err)
	}
	if _, err := adjustBalanceTx(tx, ref.IndicatorID, s.Rules.IndicatorBonus, models.ReasonReferralActivation, ref.ID, WithReferrals(1)); err != nil {
		return nil, err
	}
	log.Printf("[REFERRAL] 💰 Activated: indicator %d credited %d pts for %d", ref.IndicatorID, s.Rules.IndicatorBonus, indicatedID)
	return &Activation{Activated: true, ReferralID: ref.ID, IndicatorID: ref.IndicatorID}, nil
}

func (s *ReferralService) notifyActivation(act *Activation) {
	if act == nil || !act.Activated {
		return
	}
	s.Notifier.Notify(act.IndicatorID, fmt.Sprintf("💰 Seu indicado concluiu a primeira tarefa! Você ganhou %d pontos.", s.Rules.IndicatorBonus))
}

// GetReferral returns the referral record of an indicated user.
func (s *ReferralService) GetReferral(ctx context.Context, indicatedID int64) (*models.Referral, error) {
	var ref models.Referral
	if err := s.DB.WithContext(ctx).Where("indicated_id = ?", indicatedID).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{KindNotFound, "referral_not_found", "referral not found"}
		}
		return nil, fmt.Errorf("load referral of %d: %w", indicatedID, err)
	}
	return &ref, nil
}

// ListByIndicator returns the users brought in by indicatorID, newest first.
func (s *ReferralService) ListByIndicator(ctx context.Context, indicatorID int64) ([]models.Referral, error) {
	var refs []models.Referral
	err := s.DB.WithContext(ctx).
		Where("indicator_id = ?", indicatorID).
		Order("created_at DESC").
		Find(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("list referrals of %d: %w", indicatorID, err)
	}
	return refs, nil
}
