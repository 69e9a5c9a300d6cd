package utils

import "strings"

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone is the customer lookup key: digits only, without the
// Brazilian country code when present.
func NormalizePhone(phone string) string {
	digits := DigitsOnly(phone)
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		return digits[2:]
	}
	return digits
}

// WhatsAppNumber formats a phone for wa.me links. Local numbers with area
// code (10 or 11 digits) get the 55 country prefix.
func WhatsAppNumber(phone string) string {
	digits := DigitsOnly(phone)
	if len(digits) == 10 || len(digits) == 11 {
		return "55" + digits
	}
	return digits
}
