package models

import (
	"time"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/constants"
)

// Habit represents a recurring practice to track
type Habit struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Category    string              `json:"category"`
	Frequency   constants.Frequency `json:"frequency"`
	DaysOfWeek  []time.Weekday      `json:"days_of_week,omitempty"`  // weekly only
	DaysOfMonth []int               `json:"days_of_month,omitempty"` // monthly only, 1-31
	CreatedAt   time.Time           `json:"created_at"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`

	// Maintained by the streak tracker; never set from user input.
	Streak            int         `json:"streak"`
	LongestStreak     int         `json:"longest_streak"`
	LastCompletedAt   *time.Time  `json:"last_completed_at,omitempty"`
	CompletionHistory []time.Time `json:"completion_history"`
}

// HabitView is a habit plus the flags derived for one particular day.
// Views are computed on every read and never persisted.
type HabitView struct {
	Habit
	Date             calendar.Date `json:"date"`
	IsDueToday       bool          `json:"is_due_today"`
	IsCompletedToday bool          `json:"is_completed_today"`
}

// CompletionEntry is one ledger row: habit HabitID was done on Date.
type CompletionEntry struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	HabitID     string        `json:"habit_id"`
	Date        calendar.Date `json:"date"`         // dedup key, date-only
	CompletedAt time.Time     `json:"completed_at"` // full instant, for time-of-day analytics
	Category    string        `json:"category"`     // copied from the habit at completion time
	IsCompleted bool          `json:"is_completed"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

// StreakRecord is the per-user global streak counter.
type StreakRecord struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id"`
	CurrentStreak        int            `json:"current_streak"`
	LongestStreak        int            `json:"longest_streak"`
	LastStreakDate       *calendar.Date `json:"last_streak_date,omitempty"`
	TotalHabitsCompleted int            `json:"total_habits_completed"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// TodayStats is the due/completed pair shown for the current day.
type TodayStats struct {
	Date      calendar.Date `json:"date"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
}
