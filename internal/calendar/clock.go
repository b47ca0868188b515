package calendar

import (
	"fmt"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Set advances it.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) { c.T = t }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}

// Today returns the current calendar date in loc according to clock.
func Today(clock Clock, loc *time.Location) Date {
	return FromTime(clock.Now(), loc)
}
