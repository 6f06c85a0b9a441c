package services

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected operation for callers (HTTP status, bot reply).
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInvalidInput        Kind = "invalid_input"
	KindThrottleExceeded    Kind = "throttle_exceeded"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindInternal            Kind = "internal"
)

// Error is an expected, caller-recoverable rejection. Storage failures are
// plain wrapped errors and classify as KindInternal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrAccountNotFound = &Error{KindNotFound, "account_not_found", "account not found"}
	ErrTaskNotFound    = &Error{KindNotFound, "task_not_found", "task not found"}
	ErrPayoutNotFound  = &Error{KindNotFound, "payout_not_found", "payout request not found"}

	ErrAlreadyDone           = &Error{KindConflict, "already_done", "task already completed today"}
	ErrAlreadyIndicated      = &Error{KindConflict, "already_indicated", "user was already indicated"}
	ErrAlreadyRequestedToday = &Error{KindConflict, "already_requested_today", "a payout was already requested today"}
	ErrPayoutDecided         = &Error{KindConflict, "payout_decided", "payout request is no longer pending"}
	ErrBalanceChanged        = &Error{KindConflict, "balance_changed", "balance changed concurrently, retry"}

	ErrSelfReferral       = &Error{KindInvalidInput, "self_referral", "users cannot indicate themselves"}
	ErrInvalidDestination = &Error{KindInvalidInput, "invalid_destination", "invalid PIX key or CPF"}
	ErrTaskUnavailable    = &Error{KindInvalidInput, "task_unavailable", "task is not available today"}
	ErrPointsMismatch     = &Error{KindInvalidInput, "points_mismatch", "points do not match the task value"}

	ErrThrottleExceeded    = &Error{KindThrottleExceeded, "throttle_exceeded", "referral limit reached for this origin"}
	ErrInsufficientBalance = &Error{KindInsufficientBalance, "insufficient_balance", "not enough points"}
)

// invalidInput builds a one-off validation rejection.
func invalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Code: "invalid_input", Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the rejection kind of err, KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
