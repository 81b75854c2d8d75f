package utils

import (
	"fmt"
	"regexp"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// IsValidClock reports whether s is a zero-padded 24h "HH:MM" value.
func IsValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// ClockMinutes converts "HH:MM" into minutes since midnight.
func ClockMinutes(s string) (int, error) {
	if !IsValidClock(s) {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func IsValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func FormatClock(t time.Time) string {
	return t.Format(clockLayout)
}

// AddDays shifts a YYYY-MM-DD date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// MonthStart returns midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
