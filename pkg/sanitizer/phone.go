package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	DefaultRegion     = "BR"
	brazilCountryCode = "55"
	minNationalDigits = 10
	maxNationalDigits = 11
)

// PhoneDigits returns the national digits (area code + subscriber) of a
// Brazilian number, or "" when it does not have 10 or 11 of them. A leading
// +55 country code is tolerated.
func PhoneDigits(phone string) string {
	digits := Digits(phone)
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		national, ok := strings.CutPrefix(digits, brazilCountryCode)
		if !ok {
			return ""
		}
		digits = national
	}
	if len(digits) < minNationalDigits || len(digits) > maxNationalDigits {
		return ""
	}
	return digits
}

func ValidPhone(phone string) bool {
	return PhoneDigits(phone) != ""
}

// NormalizePhone formats a Brazilian number as E.164, or returns "" when the
// input is not a plausible national number.
func NormalizePhone(phone string) string {
	digits := PhoneDigits(phone)
	if digits == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(digits, DefaultRegion)
	if err != nil {
		return ""
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}
