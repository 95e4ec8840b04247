// Package httpdate parses and formats HTTP-date values (RFC 7231 §7.1.1.1).
package httpdate

import (
	"strings"
	"time"

	"github.com/karloscodes/httpwire/httperr"
)

// TimeFormat is the IMF-fixdate layout used when generating HTTP dates.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

const (
	rfc850Format  = "Monday, 02-Jan-06 15:04:05 GMT"
	asctimeFormat = "Mon Jan _2 15:04:05 2006"
)

// now is swapped in tests that pin the two-digit year window.
var now = time.Now

// Parse parses an HTTP date in any of the three formats allowed by RFC 7231 and returns
// it as seconds since the Unix epoch.
func Parse(v string) (int64, error) {
	t, err := ParseTime(v)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// ParseTime is like Parse but returns a UTC time.Time.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)

	if t, err := time.Parse(TimeFormat, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(rfc850Format, v); err == nil {
		return withFullYear(t), nil
	}
	if t, err := time.Parse(asctimeFormat, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, httperr.NewParseError("%q is not in a valid HTTP date format", v)
}

// withFullYear re-derives the century of an rfc850-date: a two-digit year that would
// land more than 50 years in the future is taken from the previous century.
func withFullYear(t time.Time) time.Time {
	year := t.Year() % 100
	currentYear := now().UTC().Year()
	currentCentury := currentYear - currentYear%100
	if year-currentYear%100 > 50 {
		year += currentCentury - 100
	} else {
		year += currentCentury
	}
	return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Format renders t as an IMF-fixdate in GMT.
func Format(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// FormatUnix renders epoch seconds as an IMF-fixdate in GMT.
func FormatUnix(sec int64) string {
	return Format(time.Unix(sec, 0))
}
