package utils

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PIX key types accepted for payouts.
const (
	PixKeyEmail  = "email"
	PixKeyPhone  = "phone"
	PixKeyCPF    = "cpf"
	PixKeyCNPJ   = "cnpj"
	PixKeyRandom = "random"
)

var phoneKeyRe = regexp.MustCompile(`^\+55[1-9][0-9]{9,10}$`)

// OnlyDigits strips everything but 0-9.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PixKeyType classifies a PIX key, returning "" when the key is not valid.
func PixKeyType(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 140 {
		return ""
	}

	if strings.Contains(key, "@") {
		addr, err := mail.ParseAddress(key)
		if err == nil && addr.Address == key && len(key) <= 77 {
			return PixKeyEmail
		}
		return ""
	}
	if strings.HasPrefix(key, "+") {
		if phoneKeyRe.MatchString(key) {
			return PixKeyPhone
		}
		return ""
	}
	if id, err := uuid.Parse(key); err == nil && strings.EqualFold(id.String(), key) {
		return PixKeyRandom
	}

	digits := OnlyDigits(key)
	// formatted documents like 123.456.789-09 are accepted
	if strings.Trim(key, "0123456789.-/ ") != "" {
		return ""
	}
	switch {
	case len(digits) == 11 && ValidCPF(digits):
		return PixKeyCPF
	case len(digits) == 14 && ValidCNPJ(digits):
		return PixKeyCNPJ
	}
	return ""
}

// ValidPixKey reports whether key is a PIX key of a known type.
func ValidPixKey(key string) bool {
	return PixKeyType(key) != ""
}

// ValidCPF checks length and both check digits. Punctuation is ignored.
func ValidCPF(cpf string) bool {
	d := OnlyDigits(cpf)
	if len(d) != 11 || allSame(d) {
		return false
	}
	return checkDigit(d[:9], 10) == int(d[9]-'0') &&
		checkDigit(d[:10], 11) == int(d[10]-'0')
}

func checkDigit(digits string, weight int) int {
	sum := 0
	for i, r := range digits {
		sum += int(r-'0') * (weight - i)
	}
	rem := (sum * 10) % 11
	if rem == 10 {
		return 0
	}
	return rem
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidCNPJ checks length and both check digits.
func ValidCNPJ(cnpj string) bool {
	d := OnlyDigits(cnpj)
	if len(d) != 14 || allSame(d) {
		return false
	}
	return cnpjDigit(d[:12], cnpjWeights1) == int(d[12]-'0') &&
		cnpjDigit(d[:13], cnpjWeights2) == int(d[13]-'0')
}

func cnpjDigit(digits string, weights []int) int {
	sum := 0
	for i, r := range digits {
		sum += int(r-'0') * weights[i]
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
