package services

import (
	"context"
	"log"
)

// VIPChecker answers whether a user belongs to the VIP group.
type VIPChecker interface {
	IsVIP(ctx context.Context, userID int64) (bool, error)
}

type VIPService struct {
	Accounts *AccountService
	Checker  VIPChecker
}

func NewVIPService(accounts *AccountService, checker VIPChecker) *VIPService {
	return &VIPService{Accounts: accounts, Checker: checker}
}

// Sync refreshes one user's VIP flag. Lookup failures keep the stored flag.
func (s *VIPService) Sync(ctx context.Context, userID int64) (bool, error) {
	if s.Checker == nil {
		acc, err := s.Accounts.GetAccount(ctx, userID)
		if err != nil {
			return false, err
		}
		return acc.VIP, nil
	}
	vip, err := s.Checker.IsVIP(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := s.Accounts.SetVIP(ctx, userID, vip); err != nil {
		return false, err
	}
	return vip, nil
}

// SyncAll refreshes every account and returns how many were updated.
func (s *VIPService) SyncAll(ctx context.Context) (int, error) {
	if s.Checker == nil {
		return 0, nil
	}
	ids, err := s.Accounts.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if _, err := s.Sync(ctx, id); err != nil {
			log.Printf("[VIP] ⚠️ sync %d failed: %v", id, err)
			continue
		}
		synced++
	}
	return synced, nil
}
