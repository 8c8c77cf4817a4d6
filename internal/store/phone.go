package store

import (
	"strings"

	"schooldir/internal/apperr"
)

const DefaultCountryCode = "91"

const phoneDigits = 10

// NormalizePhone reduces raw contact input to "+<countryCode><10 digits>".
// Spaces and the separators - ( ) . are ignored, as is a leading "+".
// A country-code prefix is stripped when what remains is exactly ten
// digits; anything else that is not ten digits is rejected.
func NormalizePhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	digits := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	digits = strings.TrimPrefix(digits, "+")

	if len(digits) == len(countryCode)+phoneDigits && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}

	if len(digits) != phoneDigits || !isDigits(digits) {
		return "", apperr.Validation(apperr.CodeInvalidPhone,
			"Contact number must be exactly %d digits (optionally prefixed with +%s)", phoneDigits, countryCode)
	}
	return "+" + countryCode + digits, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
