package storage

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/migration"
	"github.com/julianstephens/daystreak/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist (or is deleted).
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert would violate a uniqueness guard.
	ErrDuplicate = errors.New("duplicate record")
)

// HabitFilter selects habits for ListHabits.
type HabitFilter struct {
	UserID         string
	IncludeDeleted bool
}

// CompletionFilter selects ledger entries for ListCompletions. Zero values
// mean "no constraint". From and To are inclusive.
type CompletionFilter struct {
	UserID         string
	HabitID        string
	From           calendar.Date
	To             calendar.Date
	Completed      *bool
	IncludeDeleted bool
	Limit          int
}

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	SchemaStatus(ctx context.Context) (migration.Status, error)

	// Habits
	ListHabits(ctx context.Context, filter HabitFilter) ([]models.Habit, error)
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	CreateHabit(ctx context.Context, habit models.Habit) error
	UpdateHabit(ctx context.Context, habit models.Habit) error
	// DeleteHabit soft-deletes the habit and its ledger entries together,
	// stamping them with at.
	DeleteHabit(ctx context.Context, id string, at time.Time) error
	RestoreHabit(ctx context.Context, id string) error

	// Completions, ordered by date then completion instant, newest first.
	ListCompletions(ctx context.Context, filter CompletionFilter) ([]models.CompletionEntry, error)
	// CreateCompletion inserts entry unless one already exists for
	// (HabitID, Date), in which case it returns ErrDuplicate.
	CreateCompletion(ctx context.Context, entry models.CompletionEntry) error
	CountDuplicateCompletions(ctx context.Context, userID string) (int, error)

	// Global streak
	GetStreakRecord(ctx context.Context, userID string) (models.StreakRecord, error)
	SaveStreakRecord(ctx context.Context, record models.StreakRecord) error

	// Utils
	GetConfigPath() string
}
