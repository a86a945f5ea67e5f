// Package weekdate maps calendar dates onto the Monday that starts their week.
//
// All arithmetic is done on calendar components at a neutral noon in UTC, so no
// timezone or daylight-saving transition can move a date across midnight.
package weekdate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical week key format.
const Layout = "2006-01-02"

// ErrInvalidDate is returned for input that is not a real YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("invalid date format, expected YYYY-MM-DD")

// Date is a calendar day with no time or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Parse reads YYYY-MM-DD, ignoring any trailing "T..." time part.
func Parse(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, 'T'); idx >= 0 {
		raw = raw[:idx]
	}
	if len(raw) != len(Layout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// FromTime takes the calendar components of t in its own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// WeekStart returns the Monday on or before d.
func WeekStart(d Date) Date {
	noon := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
	offset := int(noon.Weekday()) - 1
	if noon.Weekday() == time.Sunday {
		offset = 6
	}
	return FromTime(noon.AddDate(0, 0, -offset))
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.String() < other.String()
}

// Normalize converts a date string into the week-start key of its week.
func Normalize(raw string) (string, error) {
	d, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return WeekStart(d).String(), nil
}

// NormalizeTime is Normalize for a time value, read in its own location.
func NormalizeTime(t time.Time) string {
	return WeekStart(FromTime(t)).String()
}

// CurrentWeek returns the week start of now as observed in loc.
func CurrentWeek(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return NormalizeTime(now.In(loc))
}
