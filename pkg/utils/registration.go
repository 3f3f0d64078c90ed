package utils

import (
	"regexp"
	"strings"
)

// UK registration marks are 2-8 alphanumerics once whitespace is stripped.
// Covers current, prefix, suffix and dateless formats without trying to
// validate the issuing scheme.
var registrationPattern = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)

// NormalizeRegistration uppercases a registration and strips all
// whitespace, producing the natural key used throughout the store.
func NormalizeRegistration(registration string) string {
	upper := strings.ToUpper(registration)
	return strings.Join(strings.Fields(upper), "")
}

// ValidRegistration reports whether a normalized registration is
// plausible. Callers normalize first.
func ValidRegistration(registration string) bool {
	return registrationPattern.MatchString(registration)
}
