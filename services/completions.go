package services

import (
	"context"
	"fmt"
	"log"

	"lucremais-task/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompletionService struct {
	DB        *gorm.DB
	Referrals *ReferralService
}

func NewCompletionService(db *gorm.DB, referrals *ReferralService) *CompletionService {
	return &CompletionService{DB: db, Referrals: referrals}
}

// CompletionResult is a granted completion plus the referral it activated, if any.
type CompletionResult struct {
	Completion *models.Completion `json:"completion"`
	Account    *models.Account    `json:"account"`
	Activation *Activation        `json:"activation,omitempty"`
}

// RecordCompletion credits a task once per (user, task, day). points <= 0
// takes the catalog value; any other value must match it. A second call for
// the same key returns ErrAlreadyDone and changes nothing.
//
// The user's pending referral, if any, is activated in the same transaction.
func (s *CompletionService) RecordCompletion(ctx context.Context, userID int64, taskID, day string, points int64, signal string) (*CompletionResult, error) {
	date, err := ParseDay(day)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if !task.Active || !task.AppliesOn(date.Weekday()) {
			return ErrTaskUnavailable
		}
		if points > 0 && points != task.Points {
			return ErrPointsMismatch
		}
		if _, err := loadAccount(tx, userID); err != nil {
			return err
		}

		completion := &models.Completion{
			ID:     uuid.NewString(),
			UserID: userID,
			TaskID: task.ID,
			Day:    day,
			Points: task.Points,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "task_id"}, {Name: "day"}},
			DoNothing: true,
		}).Create(completion)
		if res.Error != nil {
			return fmt.Errorf("insert completion %d/%s/%s: %w", userID, taskID, day, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyDone
		}

		acc, err := adjustBalanceTx(tx, userID, task.Points, models.ReasonTaskCompletion, completion.ID, WithTasksCompleted(1))
		if err != nil {
			return err
		}
		result.Completion = completion
		result.Account = acc

		if s.Referrals != nil {
			act, err := s.Referrals.activateTx(tx, userID, signal)
			if err != nil {
				return err
			}
			if act.Activated {
				result.Activation = act
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[COMPLETION] ✅ %d completed %s on %s (+%d pts, balance %d)",
		userID, result.Completion.TaskID, day, result.Completion.Points, result.Account.Points)
	if result.Activation != nil && s.Referrals != nil {
		s.Referrals.notifyActivation(result.Activation)
	}
	return result, nil
}

// ListCompletions returns a user's completions for one day.
func (s *CompletionService) ListCompletions(ctx context.Context, userID int64, day string) ([]models.Completion, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}
	var out []models.Completion
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list completions for %d on %s: %w", userID, day, err)
	}
	return out, nil
}
