package models

import "time"

// ParseISO parses an ISO-8601 timestamp as produced by the upstream
// APIs. A trailing "Z" and fractional seconds are both accepted.
// Returns the zero time and false when the value is empty or malformed;
// callers must treat that as "no known expiry", never as "expired".
func ParseISO(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ActiveAt reports whether a deal with the given ends_at is still
// active at now. A deal expiring exactly at now is already expired; a
// deal with no parseable ends_at never expires.
func ActiveAt(endsAt string, now time.Time) bool {
	t, ok := ParseISO(endsAt)
	if !ok {
		return true
	}
	return t.After(now)
}

// ExpiredWithin reports whether ends_at passed no more than the given
// window before now. Used by the view layer's "recently expired" filter.
func ExpiredWithin(endsAt string, now time.Time, window time.Duration) bool {
	t, ok := ParseISO(endsAt)
	if !ok {
		return false
	}
	return !t.After(now) && t.After(now.Add(-window))
}

// IsNew reports whether the record was ingested within the last 24h.
func IsNew(createdAt time.Time, now time.Time) bool {
	if createdAt.IsZero() {
		return false
	}
	return createdAt.After(now.Add(-24 * time.Hour))
}
