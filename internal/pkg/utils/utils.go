package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID v4 string.
func GenerateUUID() string {
	return uuid.New().String()
}

// RefCode is the short customer-facing reference for a record:
// "P" followed by the first 8 characters of its id, upper-cased.
func RefCode(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "P" + strings.ToUpper(id)
}

// FormatNumber adds comma separators to a number.
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var result strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	if neg {
		return "-" + result.String()
	}
	return result.String()
}

// FormatAmount renders minor units as a decimal amount, e.g. 20000 EUR -> "200.00 EUR".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	s := fmt.Sprintf("%s%s.%02d", sign, FormatNumber(minor/100), minor%100)
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}

// MaskEmail hides the local part of an address for logs.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
