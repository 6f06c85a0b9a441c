package models

// All lists every table owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&BalanceEntry{},
		&Task{},
		&Completion{},
		&Referral{},
		&ReferralThrottle{},
		&PayoutRequest{},
	}
}
