// Package analytics derives read-only reporting metrics from the ledger,
// the habit list and the global streak record.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/schedule"
	"github.com/julianstephens/daystreak/internal/streak"
)

// UncategorizedLabel names entries whose category was empty at completion time.
const UncategorizedLabel = "uncategorized"

// CategoryShare is one slice of the category distribution.
type CategoryShare struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DayStat is the due/completed pair for one day of the rhythm series.
type DayStat struct {
	Date      calendar.Date `json:"date"`
	Due       int           `json:"due"`
	Completed int           `json:"completed"`
}

func counted(e models.CompletionEntry) bool {
	return e.IsCompleted && e.DeletedAt == nil
}

// TotalCompletions counts live completed entries.
func TotalCompletions(entries []models.CompletionEntry) int {
	n := 0
	for _, e := range entries {
		if counted(e) {
			n++
		}
	}
	return n
}

// RollingCount counts completions in the n days ending at today (inclusive).
func RollingCount(entries []models.CompletionEntry, today calendar.Date, n int) int {
	if n <= 0 {
		return 0
	}
	from := today.AddDays(-(n - 1))
	count := 0
	for _, e := range entries {
		if counted(e) && !e.Date.Before(from) && !e.Date.After(today) {
			count++
		}
	}
	return count
}

// CategoryDistribution returns each category's share of all completions,
// largest first, ties by name.
func CategoryDistribution(entries []models.CompletionEntry) []CategoryShare {
	counts := make(map[string]int)
	total := 0
	for _, e := range entries {
		if !counted(e) {
			continue
		}
		cat := e.Category
		if cat == "" {
			cat = UncategorizedLabel
		}
		counts[cat]++
		total++
	}

	shares := make([]CategoryShare, 0, len(counts))
	for cat, n := range counts {
		shares = append(shares, CategoryShare{
			Category:   cat,
			Count:      n,
			Percentage: round1(float64(n) / float64(total) * 100),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Category < shares[j].Category
	})
	return shares
}

// mode returns the key with the highest count. On a tie the key seen first
// in entries wins.
func mode[K comparable](entries []models.CompletionEntry, key func(models.CompletionEntry) K) (K, bool) {
	var zero K
	counts := make(map[K]int)
	best := 0
	for _, e := range entries {
		if !counted(e) {
			continue
		}
		k := key(e)
		counts[k]++
		if counts[k] > best {
			best = counts[k]
		}
	}
	if best == 0 {
		return zero, false
	}
	for _, e := range entries {
		if counted(e) && counts[key(e)] == best {
			return key(e), true
		}
	}
	return zero, false
}

// MostFrequentWeekday returns the weekday with the most completions.
func MostFrequentWeekday(entries []models.CompletionEntry) (time.Weekday, bool) {
	return mode(entries, func(e models.CompletionEntry) time.Weekday { return e.Date.Weekday() })
}

// MostProductiveHour returns the hour of day (0-23, in loc) with the most completions.
func MostProductiveHour(entries []models.CompletionEntry, loc *time.Location) (int, bool) {
	if loc == nil {
		loc = time.Local
	}
	return mode(entries, func(e models.CompletionEntry) int { return e.CompletedAt.In(loc).Hour() })
}

// DailyStats returns the due and completed counts for the n days ending at
// today, oldest first. A habit only counts from the day it was created.
func DailyStats(habits []models.Habit, entries []models.CompletionEntry, today calendar.Date, n int, loc *time.Location) []DayStat {
	done := make(map[string]map[calendar.Date]bool)
	for _, e := range entries {
		if !counted(e) {
			continue
		}
		if done[e.HabitID] == nil {
			done[e.HabitID] = make(map[calendar.Date]bool)
		}
		done[e.HabitID][e.Date] = true
	}

	days := calendar.Range(today, n)
	stats := make([]DayStat, 0, len(days))
	for _, day := range days {
		stat := DayStat{Date: day}
		for _, h := range schedule.DueHabits(habits, day) {
			if calendar.FromTime(h.CreatedAt, loc).After(day) {
				continue
			}
			stat.Due++
			if done[h.ID][day] || streak.CompletedOn(h, day, loc) {
				stat.Completed++
			}
		}
		stats = append(stats, stat)
	}
	return stats
}

// CompletionRate is completed over due across days, as a percentage
// rounded to one decimal. It is 0 when nothing was due.
func CompletionRate(days []DayStat) float64 {
	return round1(completionRatio(days))
}

// completionRatio is the unrounded percentage behind CompletionRate.
func completionRatio(days []DayStat) float64 {
	due, completed := 0, 0
	for _, d := range days {
		due += d.Due
		completed += d.Completed
	}
	if due == 0 {
		return 0
	}
	return float64(completed) / float64(due) * 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Summary bundles every metric shown by the stats command.
type Summary struct {
	Date                calendar.Date   `json:"date"`
	TotalCompletions    int             `json:"total_completions"`
	Last7Days           int             `json:"last_7_days"`
	Last30Days          int             `json:"last_30_days"`
	Categories          []CategoryShare `json:"categories"`
	MostFrequentWeekday *time.Weekday   `json:"most_frequent_weekday,omitempty"`
	MostProductiveHour  *int            `json:"most_productive_hour,omitempty"`
	Rhythm              []DayStat       `json:"rhythm"`
	CompletionRate      float64         `json:"completion_rate"`
	CurrentStreak       int             `json:"current_streak"`
	LongestStreak       int             `json:"longest_streak"`
	TotalHabitsDone     int             `json:"total_habits_completed"`
	Tier                Tier            `json:"tier"`
	Message             string          `json:"message"`
}

// Input is everything Summarize reads.
type Input struct {
	Habits   []models.Habit
	Entries  []models.CompletionEntry
	Record   models.StreakRecord
	Today    calendar.Date
	Location *time.Location
	Picker   Picker
}

// Summarize computes the full analytics summary. The completion rate and
// tier use the trailing week.
func Summarize(in Input) Summary {
	s := Summary{
		Date:             in.Today,
		TotalCompletions: TotalCompletions(in.Entries),
		Last7Days:        RollingCount(in.Entries, in.Today, constants.WeekWindowDays),
		Last30Days:       RollingCount(in.Entries, in.Today, constants.MonthWindowDays),
		Categories:       CategoryDistribution(in.Entries),
		Rhythm:           DailyStats(in.Habits, in.Entries, in.Today, constants.WeekWindowDays, in.Location),
		CurrentStreak:    in.Record.CurrentStreak,
		LongestStreak:    in.Record.LongestStreak,
		TotalHabitsDone:  in.Record.TotalHabitsCompleted,
	}
	if wd, ok := MostFrequentWeekday(in.Entries); ok {
		s.MostFrequentWeekday = &wd
	}
	if h, ok := MostProductiveHour(in.Entries, in.Location); ok {
		s.MostProductiveHour = &h
	}
	// Tier thresholds apply to the exact rate, not the displayed one.
	rate := completionRatio(s.Rhythm)
	s.CompletionRate = round1(rate)
	s.Tier = TierFor(s.CurrentStreak, rate)
	s.Message = MessageFor(s.Tier, in.Picker)
	return s
}
