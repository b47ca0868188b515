// Package schedule decides whether a habit is due on a calendar date.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

// IsDue reports whether habit's recurrence matches date. Unknown
// frequencies are never due.
func IsDue(habit models.Habit, date calendar.Date) bool {
	switch habit.Frequency {
	case constants.FrequencyDaily:
		return true
	case constants.FrequencyWeekly:
		wd := date.Weekday()
		for _, d := range habit.DaysOfWeek {
			if d == wd {
				return true
			}
		}
		return false
	case constants.FrequencyMonthly:
		// Days missing from a month (31 in April) are simply never due.
		for _, d := range habit.DaysOfMonth {
			if d == date.Day {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// DueHabits returns the live habits due on date, without duplicates by ID.
func DueHabits(habits []models.Habit, date calendar.Date) []models.Habit {
	seen := make(map[string]bool, len(habits))
	var due []models.Habit
	for _, h := range habits {
		if h.DeletedAt != nil || seen[h.ID] {
			continue
		}
		if IsDue(h, date) {
			seen[h.ID] = true
			due = append(due, h)
		}
	}
	return due
}

// ParseWeekdays parses a comma-separated list of weekdays
func ParseWeekdays(s string) ([]time.Weekday, error) {
	parts := strings.Split(s, ",")
	var weekdays []time.Weekday
	seen := make(map[time.Weekday]bool)

	dayMap := map[string]time.Weekday{
		"sun":       time.Sunday,
		"sunday":    time.Sunday,
		"mon":       time.Monday,
		"monday":    time.Monday,
		"tue":       time.Tuesday,
		"tuesday":   time.Tuesday,
		"wed":       time.Wednesday,
		"wednesday": time.Wednesday,
		"thu":       time.Thursday,
		"thursday":  time.Thursday,
		"fri":       time.Friday,
		"friday":    time.Friday,
		"sat":       time.Saturday,
		"saturday":  time.Saturday,
	}

	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		wd, ok := dayMap[part]
		if !ok {
			// Try parsing as number (0=Sunday, 6=Saturday)
			num, err := strconv.Atoi(part)
			if err != nil || num < 0 || num > 6 {
				return nil, fmt.Errorf("invalid weekday: %s", part)
			}
			wd = time.Weekday(num)
		}
		if !seen[wd] {
			seen[wd] = true
			weekdays = append(weekdays, wd)
		}
	}

	sort.Slice(weekdays, func(i, j int) bool { return weekdays[i] < weekdays[j] })
	return weekdays, nil
}

// ParseMonthDays parses a comma-separated list of days of the month (1-31).
func ParseMonthDays(s string) ([]int, error) {
	var days []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 31 {
			return nil, fmt.Errorf("invalid day of month: %s", part)
		}
		if !seen[n] {
			seen[n] = true
			days = append(days, n)
		}
	}
	sort.Ints(days)
	return days, nil
}

// FormatRecurrence formats a habit's recurrence into a human-readable string
func FormatRecurrence(habit models.Habit) string {
	switch habit.Frequency {
	case constants.FrequencyDaily:
		return "daily"
	case constants.FrequencyWeekly:
		if len(habit.DaysOfWeek) > 0 {
			var days []string
			for _, wd := range habit.DaysOfWeek {
				days = append(days, wd.String()[:3])
			}
			return fmt.Sprintf("weekly on %s", strings.Join(days, ","))
		}
		return "weekly"
	case constants.FrequencyMonthly:
		if len(habit.DaysOfMonth) > 0 {
			var days []string
			for _, d := range habit.DaysOfMonth {
				days = append(days, strconv.Itoa(d))
			}
			return fmt.Sprintf("monthly on day %s", strings.Join(days, ","))
		}
		return "monthly"
	default:
		return "unknown"
	}
}
