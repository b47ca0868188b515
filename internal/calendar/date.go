// Package calendar provides a date-only value type and the clock used to
// decide which calendar day an instant belongs to.
package calendar

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
)

// Date is a civil calendar date with no time-of-day and no location.
// Two Dates are equal iff they name the same day, so Date is safe to use
// as a map key and as the ledger's dedup key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the normalized Date for the given components. Out-of-range
// values roll over the same way time.Date does (e.g. Feb 30 -> Mar 1/2).
func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// FromTime returns the calendar date of t as observed in loc.
// A nil loc means t's own location.
func FromTime(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(constants.DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// MustParse is Parse for literals in tests and tables; it panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// utc anchors the date at midnight UTC. UTC has no DST, so day arithmetic
// and weekday lookups on the result are exact.
func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week of the civil date.
func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return FromTime(d.utc().AddDate(0, 0, n), nil)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.utc().Before(other.utc())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.utc().After(other.utc())
}

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool {
	return d == other
}

// DaysUntil returns the number of days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.utc().Sub(d.utc()).Hours() / 24)
}

// StartIn returns midnight of d in loc.
func (d Date) StartIn(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Value implements driver.Valuer so a Date can be bound as a query argument.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for TEXT (SQLite) and DATE (PostgreSQL) columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		*d = Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into calendar.Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	// PostgreSQL may hand DATE columns back with a time suffix.
	if len(s) > len(constants.DateFormat) {
		s = s[:len(constants.DateFormat)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	return d.scanString(string(b))
}

// Range returns the n consecutive dates ending at end, oldest first.
func Range(end Date, n int) []Date {
	if n <= 0 {
		return nil
	}
	dates := make([]Date, n)
	for i := 0; i < n; i++ {
		dates[i] = end.AddDays(i - (n - 1))
	}
	return dates
}
