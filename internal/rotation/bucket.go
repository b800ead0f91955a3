package rotation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidModTime is returned when a listing timestamp cannot be parsed
var ErrInvalidModTime = errors.New("invalid modification time")

// Bucket key layouts, one per retention tier
const (
	hourLayout  = "2006-01-02 15"
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
	yearLayout  = "2006"
)

// HourKey returns the hourly bucket key (YYYY-MM-DD HH)
func HourKey(t time.Time) string { return t.Format(hourLayout) }

// DayKey returns the daily bucket key (YYYY-MM-DD)
func DayKey(t time.Time) string { return t.Format(dayLayout) }

// MonthKey returns the monthly bucket key (YYYY-MM)
func MonthKey(t time.Time) string { return t.Format(monthLayout) }

// YearKey returns the yearly bucket key (YYYY)
func YearKey(t time.Time) string { return t.Format(yearLayout) }

// zoneSuffix matches a trailing zone designator after the date part
var zoneSuffix = regexp.MustCompile(`(?:[Zz]|[+-]\d{2}(?::?\d{2})?)$`)

var modTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15",
	"2006-01-02 15",
	"2006-01-02",
}

// ParseModTime parses a listing timestamp as a naive wall-clock time.
// A trailing zone designator is discarded, not applied, so the result must
// only be compared against other naive times (see Naive).
func ParseModTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) > len(dayLayout) {
		s = s[:len(dayLayout)] + zoneSuffix.ReplaceAllString(s[len(dayLayout):], "")
	}

	for _, layout := range modTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidModTime, raw)
}

// Naive drops the location of t and keeps its wall clock, expressed in UTC
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// monthsBefore steps back n calendar months, clamping the day to the
// length of the target month (Mar 31 - 1 month = Feb 28/29).
func monthsBefore(t time.Time, n int) time.Time {
	year, month := t.Year(), int(t.Month())-n
	for month < 1 {
		month += 12
		year--
	}

	day := t.Day()
	if last := daysIn(year, time.Month(month)); day > last {
		day = last
	}

	return time.Date(year, time.Month(month), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// horizon holds the tier cut-offs for one reference instant
type horizon struct {
	day   time.Time
	month time.Time
	year  time.Time
}

func horizonFor(now time.Time) horizon {
	now = Naive(now)
	return horizon{
		day:   now.AddDate(0, 0, -1),
		month: monthsBefore(now, 1),
		year:  monthsBefore(now, 12),
	}
}
