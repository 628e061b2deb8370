// Package bizday computes business-day boundaries and day keys under the
// fixed UTC+7 offset the storefronts report in. Nothing here consults the
// host's local timezone.
package bizday

import (
	"errors"
	"regexp"
	"time"
)

const (
	Layout       = "2006-01-02"
	OffsetHours  = 7
	offsetSecond = OffsetHours * 60 * 60
)

var (
	Zone = time.FixedZone("UTC+7", offsetSecond)

	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Key returns the YYYY-MM-DD business date of t.
func Key(t time.Time) string {
	return t.In(Zone).Format(Layout)
}

// Parse reads a YYYY-MM-DD string as midnight of that business day.
func Parse(date string) (time.Time, error) {
	if !datePattern.MatchString(date) {
		return time.Time{}, ErrInvalidDate
	}
	day, err := time.ParseInLocation(Layout, date, Zone)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

func StartOfDay(t time.Time) time.Time {
	local := t.In(Zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone)
}

// EndOfDay is the last representable instant of t's business day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

func Bounds(t time.Time) (time.Time, time.Time) {
	return StartOfDay(t), EndOfDay(t)
}

// Contains reports whether instant falls on the business day of day.
func Contains(day time.Time, instant time.Time) bool {
	from, to := Bounds(day)
	return !instant.Before(from) && !instant.After(to)
}

func Today(now time.Time) time.Time {
	return StartOfDay(now)
}
