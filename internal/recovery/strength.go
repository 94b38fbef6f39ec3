package recovery

import (
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// SpecialChars is the set counted by the advisory special-character facet.
const SpecialChars = `!@#$%^&*(),.?":{}|<>`

// Strength is the per-facet breakdown of a candidate password.
type Strength struct {
	MinLength   bool `json:"has_min_length"`
	UpperCase   bool `json:"has_upper_case"`
	LowerCase   bool `json:"has_lower_case"`
	Number      bool `json:"has_number"`
	SpecialChar bool `json:"has_special_char"`
}

// EvaluatePassword computes every facet for password. Letter and digit
// facets are ASCII only. Length counts runes.
func EvaluatePassword(password string) Strength {
	return Strength{
		MinLength:   utf8.RuneCountInString(password) >= MinPasswordLength,
		UpperCase:   strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }),
		LowerCase:   strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }),
		Number:      strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }),
		SpecialChar: strings.ContainsAny(password, SpecialChars),
	}
}

// IsStrong reports whether the password may be submitted. The special
// character facet is advisory and not part of the check.
func (s Strength) IsStrong() bool {
	return s.MinLength && s.UpperCase && s.LowerCase && s.Number
}

// IsPasswordStrong is shorthand for EvaluatePassword(password).IsStrong().
func IsPasswordStrong(password string) bool {
	return EvaluatePassword(password).IsStrong()
}
