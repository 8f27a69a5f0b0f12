package timeutil

import "time"

// FloorToMinute truncates t to minute precision, dropping seconds and
// sub-second components.
func FloorToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// CeilToMinute rounds t up to the next whole minute when any sub-minute
// remainder exists, otherwise returns t unchanged. Paired with FloorToMinute
// on window starts this guarantees rounding never shortens a requested
// duration.
func CeilToMinute(t time.Time) time.Time {
	floored := t.Truncate(time.Minute)
	if floored.Equal(t) {
		return t
	}
	return floored.Add(time.Minute)
}

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}
