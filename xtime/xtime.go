// Package xtime extends Go's time. So far it contains parsing of the date and
// datetime textual formats used by record fields.
package xtime

import (
	"errors"
	"fmt"
	"time"
)

// Layouts of the date and datetime field values. Datetimes are always UTC.
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05"
)

// ErrInvalidFormat indicates that a value is neither a date nor a datetime.
var ErrInvalidFormat = errors.New("invalid date/datetime format")

// ParseDate parses a date like "2024-12-31" as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidFormat, s)
	}
	return t, nil
}

// ParseDatetime parses a datetime like "2024-12-31 10:30:00" as UTC.
// RFC 3339 timestamps are also accepted.
func ParseDatetime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DatetimeLayout, s, time.UTC)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: datetime %q", ErrInvalidFormat, s)
	}
	return t.UTC(), nil
}

// Parse parses s either as a datetime or, if that fails, as a date.
func Parse(s string) (time.Time, error) {
	if t, err := ParseDatetime(s); err == nil {
		return t, nil
	}
	if t, err := ParseDate(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// FormatDate formats t with [DateLayout] in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FormatDatetime formats t with [DatetimeLayout] in UTC.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(DatetimeLayout)
}
