package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TimestampFormat is a fixed-width RFC 3339 layout. Stored instants are
// always UTC, so TEXT columns sort chronologically.
const TimestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders t for a TEXT column.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp parses a stored timestamp. Plain RFC 3339 values are accepted too.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampFormat, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// NullTimestamp converts an optional instant into a nullable column value.
func NullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTimestamp(*t), Valid: true}
}

// ParseNullTimestamp is the inverse of NullTimestamp.
func ParseNullTimestamp(ns sql.NullString, field string) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(ns.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return &t, nil
}

// EncodeHistory serializes a completion history as a JSON array of timestamps.
func EncodeHistory(history []time.Time) (string, error) {
	out := make([]string, len(history))
	for i, t := range history {
		out[i] = FormatTimestamp(t)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion history: %w", err)
	}
	return string(b), nil
}

// DecodeHistory parses the output of EncodeHistory. Empty input is an empty history.
func DecodeHistory(data []byte) ([]time.Time, error) {
	if len(data) == 0 {
		return []time.Time{}, nil
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode completion history: %w", err)
	}
	history := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		t, err := ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("failed to decode completion history: %w", err)
		}
		history = append(history, t)
	}
	return history, nil
}

// EncodeWeekdays serializes weekdays as a JSON array of integers (0=Sunday).
func EncodeWeekdays(days []time.Weekday) (string, error) {
	ints := make([]int, len(days))
	for i, d := range days {
		ints[i] = int(d)
	}
	return EncodeInts(ints)
}

// DecodeWeekdays is the inverse of EncodeWeekdays.
func DecodeWeekdays(data []byte) ([]time.Weekday, error) {
	ints, err := DecodeInts(data)
	if err != nil || ints == nil {
		return nil, err
	}
	days := make([]time.Weekday, len(ints))
	for i, n := range ints {
		days[i] = time.Weekday(n)
	}
	return days, nil
}

// EncodeInts serializes ints as a JSON array.
func EncodeInts(ints []int) (string, error) {
	if ints == nil {
		ints = []int{}
	}
	b, err := json.Marshal(ints)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeInts parses a JSON integer array. Empty input and "[]" decode to nil.
func DecodeInts(data []byte) ([]int, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("failed to decode integer list: %w", err)
	}
	if len(ints) == 0 {
		return nil, nil
	}
	return ints, nil
}
