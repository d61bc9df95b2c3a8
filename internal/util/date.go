package util

import "time"

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalculateActualDate returns the actual date for a target day in a given month,
// handling months with fewer days (e.g., day 31 in February returns Feb 28/29)
func CalculateActualDate(year int, month time.Month, targetDay int) time.Time {
	// Get last day of month by going to day 0 of next month
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()

	actualDay := targetDay
	if actualDay > lastDay {
		actualDay = lastDay
	}

	return time.Date(year, month, actualDay, 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped advances t by n calendar months, keeping the day of month
// where possible and clamping to the last day otherwise (Jan 31 + 1 → Feb 28/29).
// Unlike time.AddDate it never spills into the following month.
func AddMonthsClamped(t time.Time, n int) time.Time {
	t = DateOnly(t)
	// Normalize year/month through day 1 so AddDate cannot overflow
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return CalculateActualDate(first.Year(), first.Month(), t.Day())
}

// AddDays advances t by n days on the calendar
func AddDays(t time.Time, n int) time.Time {
	return DateOnly(t).AddDate(0, 0, n)
}
