package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"lucremais-task/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	DefaultRankingSize = 5
	rankingCacheTTL    = 30 * time.Second
)

// RankingEntry is one row of a leaderboard.
type RankingEntry struct {
	UserID         int64  `json:"telegram_id"`
	Name           string `json:"name"`
	Points         int64  `json:"points"`
	TasksCompleted int64  `json:"tasks_completed"`
	Referrals      int64  `json:"referrals"`
}

// Ranking is the pair of leaderboards shown in the mini app.
type Ranking struct {
	ByPoints    []RankingEntry `json:"by_points"`
	ByReferrals []RankingEntry `json:"by_referrals"`
}

type RankingService struct {
	DB    *gorm.DB
	Redis *redis.Client // optional
	TTL   time.Duration
}

func NewRankingService(db *gorm.DB, rdb *redis.Client) *RankingService {
	return &RankingService{DB: db, Redis: rdb, TTL: rankingCacheTTL}
}

func (s *RankingService) TopByPoints(ctx context.Context, limit int) ([]RankingEntry, error) {
	return s.top(ctx, "points", limit)
}

func (s *RankingService) TopByReferrals(ctx context.Context, limit int) ([]RankingEntry, error) {
	return s.top(ctx, "referrals", limit)
}

// Both returns the two leaderboards.
func (s *RankingService) Both(ctx context.Context, limit int) (*Ranking, error) {
	byPoints, err := s.TopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}
	byReferrals, err := s.TopByReferrals(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Ranking{ByPoints: byPoints, ByReferrals: byReferrals}, nil
}

func (s *RankingService) top(ctx context.Context, column string, limit int) ([]RankingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultRankingSize
	}
	key := fmt.Sprintf("ranking:%s:%d", column, limit)

	if s.Redis != nil {
		raw, err := s.Redis.Get(ctx, key).Bytes()
		if err == nil {
			var cached []RankingEntry
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("[RANKING] ⚠️ cache read %s failed: %v", key, err)
		}
	}

	var accounts []models.Account
	err := s.DB.WithContext(ctx).
		Order(column + " DESC").
		Order("user_id ASC").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("ranking by %s: %w", column, err)
	}

	out := make([]RankingEntry, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, RankingEntry{
			UserID:         a.UserID,
			Name:           a.DisplayName,
			Points:         a.Points,
			TasksCompleted: a.TasksCompleted,
			Referrals:      a.Referrals,
		})
	}

	if s.Redis != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.Redis.Set(ctx, key, raw, s.TTL).Err(); err != nil {
				log.Printf("[RANKING] ⚠️ cache write %s failed: %v", key, err)
			}
		}
	}
	return out, nil
}
