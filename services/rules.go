package services

import "github.com/shopspring/decimal"

// Rules are the reward and eligibility constants (tunable via env).
type Rules struct {
	SignupBonus       int64           // credited to the indicated user on registration
	IndicatorBonus    int64           // credited to the indicator on activation
	ThrottleCeiling   int             // referrals allowed per throttle signal
	VIPThreshold      int64           // min points for a VIP payout
	StandardThreshold int64           // min points for a standard payout
	PointValue        decimal.Decimal // currency value of one point
}

var DefaultRules = Rules{
	SignupBonus:       5,
	IndicatorBonus:    5,
	ThrottleCeiling:   3,
	VIPThreshold:      200,
	StandardThreshold: 400,
	PointValue:        decimal.RequireFromString("0.05"),
}

// PayoutThreshold returns the minimum balance for a payout request.
func (r Rules) PayoutThreshold(vip bool) int64 {
	if vip {
		return r.VIPThreshold
	}
	return r.StandardThreshold
}

// PayoutValue converts points to money, rounded to cents.
func (r Rules) PayoutValue(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Mul(r.PointValue).Round(2)
}
