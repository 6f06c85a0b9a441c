package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lucremais-task/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPayout_ConcurrentSameDay(t *testing.T) {
	db := setupConcurrentDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, DefaultRules, fixedClock(t, "2025-03-03 10:00"), nil)
	mustAccount(t, db, 1, "Ana")
	setPoints(t, db, 1, 450, false)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestPayout(ctx, 1, validPix, validCPF)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case KindOf(err) == KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	assert.Equal(t, n-1, conflicts)

	var requests int64
	require.NoError(t, db.Model(&models.PayoutRequest{}).Where("user_id = ?", 1).Count(&requests).Error)
	assert.Equal(t, int64(1), requests)

	acc, err := NewAccountService(db).GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, acc.Points)
	assert.Equal(t, int64(1), countEntries(t, db, 1), "one reservation entry")
}

func TestRegisterReferral_ConcurrentThrottle(t *testing.T) {
	db := setupConcurrentDB(t)
	ctx := context.Background()
	svc := NewReferralService(db, DefaultRules, nil)
	mustAccount(t, db, 1, "Indicador")

	const n = 6
	for i := int64(0); i < n; i++ {
		mustAccount(t, db, 100+i, "Indicado")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, throttled := 0, 0
	for i := int64(0); i < n; i++ {
		wg.Add(1)
		go func(indicated int64) {
			defer wg.Done()
			_, err := svc.RegisterReferral(ctx, indicated, 1, "203.0.113.9")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case errors.Is(err, ErrThrottleExceeded):
				throttled++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(100 + i)
	}
	wg.Wait()

	ceiling := DefaultRules.ThrottleCeiling
	assert.Equal(t, ceiling, granted)
	assert.Equal(t, n-ceiling, throttled)

	var counter models.ReferralThrottle
	require.NoError(t, db.First(&counter, "signal = ?", "203.0.113.9").Error)
	assert.Equal(t, ceiling, counter.Used)

	var referrals int64
	require.NoError(t, db.Model(&models.Referral{}).Where("indicator_id = ?", 1).Count(&referrals).Error)
	assert.Equal(t, int64(ceiling), referrals)
}
