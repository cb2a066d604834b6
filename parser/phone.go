package parser

import (
	"regexp"
	"strings"

	"github.com/aluiziolira/leadscout/models"
)

const (
	// CountryCode is the Brazilian calling code prefixed to national numbers.
	CountryCode = "55"
	// Unobtainable is logged and exported when a phone cannot be dialled.
	Unobtainable = "unobtainable"

	minDigits = 5
	// area code (2) + local number (8 landline, 9 mobile)
	minNational = 10
	maxNational = 11
)

var nonDigit = regexp.MustCompile(`\D`)

// NormalizePhone turns a raw phone string into the digits a wa.me link expects.
//
// National numbers (10 or 11 digits) always get the country code. Numbers that
// already carry it (12 or 13 digits starting with 55) are kept as they are.
// Anything else, including the not-found sentinel, reports ok=false.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == models.NotFound {
		return "", false
	}

	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) < minDigits {
		return "", false
	}

	switch n := len(digits); {
	case n >= minNational && n <= maxNational:
		return CountryCode + digits, true
	case n >= len(CountryCode)+minNational && n <= len(CountryCode)+maxNational && strings.HasPrefix(digits, CountryCode):
		return digits, true
	default:
		return "", false
	}
}

// WhatsAppLink builds the wa.me deep link for a raw phone, or "" when unobtainable.
func WhatsAppLink(raw string) string {
	digits, ok := NormalizePhone(raw)
	if !ok {
		return ""
	}
	return "https://wa.me/" + digits
}
