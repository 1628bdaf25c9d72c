package domain

import "time"

// WindowContains reports whether t falls inside the half-open window
// [validFrom, validUntil). A rule applies at exactly validFrom and stops
// applying at exactly validUntil. A nil validUntil never closes.
func WindowContains(validFrom time.Time, validUntil *time.Time, t time.Time) bool {
	if t.Before(validFrom) {
		return false
	}
	if validUntil != nil && !t.Before(*validUntil) {
		return false
	}
	return true
}
