package scan

import "time"

const day = 24 * time.Hour

// parseTime accepts RFC3339 or a bare date.
func parseTime(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ComputeBaseDate picks the origin for age calculations: an explicit start
// date if it is valid and not in the future, else the creation date under the
// same rule, else nil. A nil base date short-circuits evaluation for the
// project.
func ComputeBaseDate(now time.Time, startDate *string, createdAt string) *time.Time {
	isValidPast := func(v string) (time.Time, bool) {
		t, ok := parseTime(v)
		if !ok || t.After(now) {
			return time.Time{}, false
		}
		return t, true
	}
	if startDate != nil {
		if t, ok := isValidPast(*startDate); ok {
			return &t
		}
	}
	if t, ok := isValidPast(createdAt); ok {
		return &t
	}
	return nil
}

// AgeDays is the whole number of days between base and now, floored at zero.
func AgeDays(now, base time.Time) int {
	d := int(now.Sub(base) / day)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale reports whether the base date is at least the window old. False for
// a nil base.
func IsStale(now time.Time, base *time.Time, window time.Duration) bool {
	if base == nil {
		return false
	}
	return now.Sub(*base) >= window
}

// OverdueDays is floor((now-due)/day), or nil if the due date does not parse.
func OverdueDays(now time.Time, due string) *int {
	t, ok := parseTime(due)
	if !ok {
		return nil
	}
	d := int(now.Sub(t) / day)
	return &d
}
