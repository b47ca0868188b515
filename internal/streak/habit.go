// Package streak maintains the per-habit and user-wide streak counters.
package streak

import (
	"sort"
	"time"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/schedule"
)

// CompletedOn reports whether any instant in habit's history falls on date in loc.
func CompletedOn(habit models.Habit, date calendar.Date, loc *time.Location) bool {
	for _, t := range habit.CompletionHistory {
		if calendar.FromTime(t, loc) == date {
			return true
		}
	}
	return false
}

// IsCompletedToday reports whether habit is due today and already done.
// It is recomputed from history on every call, so yesterday's completion
// never leaks into today.
func IsCompletedToday(habit models.Habit, now time.Time, loc *time.Location) bool {
	today := calendar.FromTime(now, loc)
	return schedule.IsDue(habit, today) && CompletedOn(habit, today, loc)
}

// ApplyCompletion records a completion at now and returns the updated habit.
// It returns the habit unchanged and false when a completion already exists
// for today's date.
//
// The streak counts consecutive calendar days with a completion, for every
// frequency: completing the day after the last completion extends it, any
// gap restarts it at 1.
func ApplyCompletion(habit models.Habit, now time.Time, loc *time.Location) (models.Habit, bool) {
	today := calendar.FromTime(now, loc)
	if CompletedOn(habit, today, loc) {
		return habit, false
	}

	next := 1
	if habit.LastCompletedAt != nil && calendar.FromTime(*habit.LastCompletedAt, loc) == today.AddDays(-1) {
		next = habit.Streak + 1
	}

	updated := habit
	updated.Streak = next
	if next > updated.LongestStreak {
		updated.LongestStreak = next
	}
	updated.CompletionHistory = append(append([]time.Time(nil), habit.CompletionHistory...), now)
	completedAt := now
	updated.LastCompletedAt = &completedAt
	return updated, true
}

// Project computes the transient view of habit for today from its history
// and the given ledger entries (which may include other habits' entries).
func Project(habit models.Habit, entries []models.CompletionEntry, today calendar.Date, loc *time.Location) models.HabitView {
	due := schedule.IsDue(habit, today)
	done := CompletedOn(habit, today, loc)
	if !done {
		for _, e := range entries {
			if e.HabitID == habit.ID && e.Date == today && e.IsCompleted && e.DeletedAt == nil {
				done = true
				break
			}
		}
	}
	return models.HabitView{
		Habit:            habit,
		Date:             today,
		IsDueToday:       due,
		IsCompletedToday: due && done,
	}
}

// Recompute rebuilds habit's streak, longest streak, last completion and
// history from its ledger entries merged with its existing history. Each
// calendar date contributes its earliest instant once.
func Recompute(habit models.Habit, entries []models.CompletionEntry, loc *time.Location) models.Habit {
	firstByDate := make(map[calendar.Date]time.Time)
	note := func(d calendar.Date, t time.Time) {
		if prev, ok := firstByDate[d]; !ok || t.Before(prev) {
			firstByDate[d] = t
		}
	}
	for _, e := range entries {
		if e.HabitID != habit.ID || !e.IsCompleted || e.DeletedAt != nil {
			continue
		}
		note(e.Date, e.CompletedAt)
	}
	for _, t := range habit.CompletionHistory {
		note(calendar.FromTime(t, loc), t)
	}

	dates := make([]calendar.Date, 0, len(firstByDate))
	for d := range firstByDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rebuilt := habit
	rebuilt.Streak = 0
	rebuilt.LongestStreak = 0
	rebuilt.LastCompletedAt = nil
	rebuilt.CompletionHistory = make([]time.Time, 0, len(dates))

	run := 0
	for i, d := range dates {
		if i > 0 && dates[i-1].AddDays(1) == d {
			run++
		} else {
			run = 1
		}
		if run > rebuilt.LongestStreak {
			rebuilt.LongestStreak = run
		}
		rebuilt.CompletionHistory = append(rebuilt.CompletionHistory, firstByDate[d])
	}
	if n := len(dates); n > 0 {
		rebuilt.Streak = run
		last := firstByDate[dates[n-1]]
		rebuilt.LastCompletedAt = &last
	}
	return rebuilt
}

// NeedsRepair reports whether the cached streak fields disagree with what
// Recompute would produce.
func NeedsRepair(habit models.Habit, entries []models.CompletionEntry, loc *time.Location) bool {
	r := Recompute(habit, entries, loc)
	if r.Streak != habit.Streak || r.LongestStreak != habit.LongestStreak || len(r.CompletionHistory) != len(habit.CompletionHistory) {
		return true
	}
	if (r.LastCompletedAt == nil) != (habit.LastCompletedAt == nil) {
		return true
	}
	return r.LastCompletedAt != nil && !r.LastCompletedAt.Equal(*habit.LastCompletedAt)
}
