package streak

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/daystreak/internal/calendar"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/ledger"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/schedule"
	"github.com/julianstephens/daystreak/internal/storage"
)

// Global maintains the per-user streak of days on which every due habit
// was completed.
//
// Both triggers evaluate one calendar day E and stamp LastStreakDate with
// the anchor E+1, so the daily check (E = yesterday) and the per-action
// check (E = the day of the action) agree and never double count.
type Global struct {
	store  storage.Provider
	ledger *ledger.Ledger
	clock  calendar.Clock
	loc    *time.Location
}

func NewGlobal(store storage.Provider, l *ledger.Ledger, clock calendar.Clock, loc *time.Location) *Global {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Global{store: store, ledger: l, clock: clock, loc: loc}
}

// Record returns userID's streak record, creating it with zero counters
// if it does not exist yet.
func (g *Global) Record(ctx context.Context, userID string) (models.StreakRecord, error) {
	if userID == "" {
		return models.StreakRecord{}, apperrors.ErrNotAuthenticated
	}

	record, err := g.store.GetStreakRecord(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.StreakRecord{}, apperrors.Persistence("load streak record", err)
	}

	record = models.StreakRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		UpdatedAt: g.clock.Now(),
	}
	if err := g.store.SaveStreakRecord(ctx, record); err != nil {
		return models.StreakRecord{}, apperrors.Persistence("create streak record", err)
	}
	logger.Debug("Created streak record", "user", userID)
	return record, nil
}

// AdvanceIfDayComplete evaluates the day before today. Calling it any
// number of times on the same day yields the same record.
func (g *Global) AdvanceIfDayComplete(ctx context.Context, userID string, today calendar.Date) (models.StreakRecord, error) {
	return g.advance(ctx, userID, today.AddDays(-1))
}

// AdvanceForCompletedDay evaluates day itself; it runs after a completion
// so the streak reflects a fully satisfied day immediately.
func (g *Global) AdvanceForCompletedDay(ctx context.Context, userID string, day calendar.Date) (models.StreakRecord, error) {
	return g.advance(ctx, userID, day)
}

func (g *Global) advance(ctx context.Context, userID string, evaluated calendar.Date) (models.StreakRecord, error) {
	record, err := g.Record(ctx, userID)
	if err != nil {
		return models.StreakRecord{}, err
	}

	// A day at or behind the last anchor has already been accounted for.
	anchor := evaluated.AddDays(1)
	if record.LastStreakDate != nil && !record.LastStreakDate.Before(anchor) {
		return record, nil
	}

	complete, dueCount, err := g.dayComplete(ctx, userID, evaluated)
	if err != nil {
		return models.StreakRecord{}, err
	}
	if !complete {
		return record, nil
	}

	if record.LastStreakDate != nil && *record.LastStreakDate == anchor.AddDays(-1) {
		record.CurrentStreak++
	} else {
		record.CurrentStreak = 1
	}
	if record.CurrentStreak > record.LongestStreak {
		record.LongestStreak = record.CurrentStreak
	}
	record.LastStreakDate = &anchor
	record.TotalHabitsCompleted += dueCount
	record.UpdatedAt = g.clock.Now()

	if err := g.store.SaveStreakRecord(ctx, record); err != nil {
		return models.StreakRecord{}, apperrors.Persistence("save streak record", err)
	}
	logger.Info("Global streak advanced", "user", userID, "day", evaluated, "streak", record.CurrentStreak)
	return record, nil
}

// dayComplete reports whether every live habit due on day was completed
// that day. Habits created after day are not due on it. An empty due set
// is never complete.
func (g *Global) dayComplete(ctx context.Context, userID string, day calendar.Date) (bool, int, error) {
	habits, err := g.store.ListHabits(ctx, storage.HabitFilter{UserID: userID})
	if err != nil {
		return false, 0, apperrors.Persistence("list habits", err)
	}

	var due []models.Habit
	for _, h := range schedule.DueHabits(habits, day) {
		if calendar.FromTime(h.CreatedAt, g.loc).After(day) {
			continue
		}
		due = append(due, h)
	}
	if len(due) == 0 {
		return false, 0, nil
	}

	done, err := g.ledger.CompletedHabitIDs(ctx, userID, day)
	if err != nil {
		return false, 0, err
	}
	for _, h := range due {
		if !done[h.ID] && !CompletedOn(h, day, g.loc) {
			return false, 0, nil
		}
	}
	return true, len(due), nil
}
