package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

var (
	ErrNoBotUsername = errors.New("bot username is not configured")
	ErrBadUserID     = errors.New("invalid user id for referral link")
)

// ReferralLink builds the deep link that starts the bot with the referrer id
// as payload, e.g. https://t.me/lucremais_bot?start=123.
func ReferralLink(botUsername string, userID int64) (string, error) {
	botUsername = strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	if botUsername == "" {
		return "", ErrNoBotUsername
	}
	if userID <= 0 {
		return "", ErrBadUserID
	}
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID), nil
}

// ReferralQR renders the referral link as a PNG QR code.
func ReferralQR(botUsername string, userID int64, size int) ([]byte, error) {
	link, err := ReferralLink(botUsername, userID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %d: %w", userID, err)
	}
	return png, nil
}

// ParseReferrer reads the /start payload. Both "123" and "ref_123" are accepted.
func ParseReferrer(payload string) (int64, bool) {
	payload = strings.TrimPrefix(strings.TrimSpace(payload), "ref_")
	if payload == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
