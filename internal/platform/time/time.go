// Package time holds the UTC day helpers used for warehouse partitions
package time

import "time"

// DayLayout is the partition date format
const DayLayout = "2006-01-02"

// Day truncates t to midnight of its UTC calendar date
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayString formats the UTC date of t
func DayString(t time.Time) string { return t.UTC().Format(DayLayout) }

// ParseDay parses a YYYY-MM-DD partition date as UTC midnight
func ParseDay(s string) (time.Time, error) { return time.ParseInLocation(DayLayout, s, time.UTC) }

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
