package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"lucremais-task/models"

	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountService struct {
	DB *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{DB: db}
}

// searchName folds a display name to lower-case ASCII ("João" -> "joao").
func searchName(displayName string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(displayName)))
}

// GetOrCreate ensures an Account row exists (idempotent). An existing row is
// returned untouched: name and balance are never overwritten.
func (s *AccountService) GetOrCreate(ctx context.Context, userID int64, displayName string) (*models.Account, error) {
	if userID <= 0 {
		return nil, invalidInput("invalid user id %d", userID)
	}
	acc := models.Account{
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		SearchName:  searchName(displayName),
	}
	db := s.DB.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&acc)
	if res.Error != nil {
		return nil, fmt.Errorf("upsert account %d: %w", userID, res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("[ACCOUNTS] 🆕 Account created: %d (%s)", userID, acc.DisplayName)
	}
	return s.GetAccount(ctx, userID)
}

// GetAccount loads one account.
func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	return loadAccount(s.DB.WithContext(ctx), userID)
}

func loadAccount(tx *gorm.DB, userID int64) (*models.Account, error) {
	var acc models.Account
	if err := tx.Where("user_id = ?", userID).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account %d: %w", userID, err)
	}
	return &acc, nil
}

// AdjustOption adds counter deltas or guards to a balance adjustment.
type AdjustOption func(*adjustOptions)

type adjustOptions struct {
	tasksCompleted int64
	referrals      int64
	expected       *int64
}

func WithTasksCompleted(delta int64) AdjustOption {
	return func(o *adjustOptions) { o.tasksCompleted += delta }
}

func WithReferrals(delta int64) AdjustOption {
	return func(o *adjustOptions) { o.referrals += delta }
}

// WithExpectedBalance applies the adjustment only if the balance still equals
// points (compare-and-set).
func WithExpectedBalance(points int64) AdjustOption {
	return func(o *adjustOptions) { o.expected = &points }
}

// AdjustBalance is the only write path for points. It runs in its own
// transaction; components that need it inside a larger transaction use
// adjustBalanceTx.
func (s *AccountService) AdjustBalance(ctx context.Context, userID, delta int64, reason models.BalanceReason, ref string, opts ...AdjustOption) (*models.Account, error) {
	var acc *models.Account
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		acc, err = adjustBalanceTx(tx, userID, delta, reason, ref, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// adjustBalanceTx applies delta and counter deltas in one guarded UPDATE and
// appends the audit entry. The balance can never go negative.
func adjustBalanceTx(tx *gorm.DB, userID, delta int64, reason models.BalanceReason, ref string, opts ...AdjustOption) (*models.Account, error) {
	var o adjustOptions
	for _, opt := range opts {
		opt(&o)
	}

	updates := map[string]interface{}{
		"points": gorm.Expr("points + ?", delta),
	}
	if o.tasksCompleted != 0 {
		updates["tasks_completed"] = gorm.Expr("tasks_completed + ?", o.tasksCompleted)
	}
	if o.referrals != 0 {
		updates["referrals"] = gorm.Expr("referrals + ?", o.referrals)
	}

	q := tx.Model(&models.Account{}).Where("user_id = ? AND points + ? >= 0", userID, delta)
	if o.expected != nil {
		q = q.Where("points = ?", *o.expected)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("adjust balance %d by %d: %w", userID, delta, res.Error)
	}
	if res.RowsAffected == 0 {
		acc, err := loadAccount(tx, userID)
		if err != nil {
			return nil, err
		}
		if o.expected != nil && acc.Points != *o.expected {
			return nil, ErrBalanceChanged
		}
		return nil, ErrInsufficientBalance
	}

	acc, err := loadAccount(tx, userID)
	if err != nil {
		return nil, err
	}
	entry := models.BalanceEntry{
		UserID:       userID,
		Delta:        delta,
		BalanceAfter: acc.Points,
		Reason:       reason,
		Ref:          ref,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("append balance entry for %d: %w", userID, err)
	}
	return acc, nil
}

// SetVIP updates the VIP flag. Returns ErrAccountNotFound for unknown users.
func (s *AccountService) SetVIP(ctx context.Context, userID int64, vip bool) error {
	res := s.DB.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ?", userID).
		Update("vip", vip)
	if res.Error != nil {
		return fmt.Errorf("set vip for %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SearchAccounts matches the folded display name or the exact user id.
func (s *AccountService) SearchAccounts(ctx context.Context, query string, limit int) ([]models.Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.Account{}).Order("points DESC").Limit(limit)
	if q := searchName(query); q != "" {
		db = db.Where("search_name LIKE ? OR CAST(user_id AS TEXT) = ?", "%"+q+"%", q)
	}
	var accounts []models.Account
	if err := db.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	return accounts, nil
}

// ListBalanceEntries returns the newest audit entries for a user.
func (s *AccountService) ListBalanceEntries(ctx context.Context, userID int64, limit int) ([]models.BalanceEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.BalanceEntry
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list balance entries for %d: %w", userID, err)
	}
	return entries, nil
}

// ListUserIDs returns every account id, used by the VIP resync job.
func (s *AccountService) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.DB.WithContext(ctx).Model(&models.Account{}).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	return ids, nil
}
