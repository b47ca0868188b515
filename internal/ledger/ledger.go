// Package ledger is the append-only completion log. It is the source of
// truth for "was habit X done on day Y" and guarantees at most one live
// entry per habit per calendar date.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/daystreak/internal/calendar"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

type Ledger struct {
	store storage.Provider
}

func New(store storage.Provider) *Ledger {
	return &Ledger{store: store}
}

// RecordCompletion appends an entry for (habitID, date). If one already
// exists it returns apperrors.ErrAlreadyCompleted and writes nothing.
func (l *Ledger) RecordCompletion(ctx context.Context, userID, habitID string, date calendar.Date, completedAt time.Time, category string) (models.CompletionEntry, error) {
	if userID == "" {
		return models.CompletionEntry{}, apperrors.ErrNotAuthenticated
	}

	entry := models.CompletionEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		HabitID:     habitID,
		Date:        date,
		CompletedAt: completedAt,
		Category:    category,
		IsCompleted: true,
	}

	err := l.store.CreateCompletion(ctx, entry)
	if errors.Is(err, storage.ErrDuplicate) {
		logger.Debug("Completion already recorded", "habit", habitID, "date", date)
		return models.CompletionEntry{}, apperrors.ErrAlreadyCompleted
	}
	if err != nil {
		logger.Error("Failed to record completion", "habit", habitID, "date", date, "error", err)
		return models.CompletionEntry{}, apperrors.Persistence("record completion", err)
	}

	logger.Debug("Completion recorded", "habit", habitID, "date", date, "entry", entry.ID)
	return entry, nil
}

// ListCompletions returns userID's entries matching filter, newest first.
// filter.UserID is overwritten with userID.
func (l *Ledger) ListCompletions(ctx context.Context, userID string, filter storage.CompletionFilter) ([]models.CompletionEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	filter.UserID = userID
	entries, err := l.store.ListCompletions(ctx, filter)
	if err != nil {
		return nil, apperrors.Persistence("list completions", err)
	}
	return entries, nil
}

// HasCompletion reports whether habitID has a live entry on date.
func (l *Ledger) HasCompletion(ctx context.Context, habitID string, date calendar.Date) (bool, error) {
	entries, err := l.store.ListCompletions(ctx, storage.CompletionFilter{
		HabitID: habitID,
		From:    date,
		To:      date,
		Limit:   1,
	})
	if err != nil {
		return false, apperrors.Persistence("check completion", err)
	}
	return len(entries) > 0, nil
}

// CompletedHabitIDs returns the set of habits userID completed on date.
func (l *Ledger) CompletedHabitIDs(ctx context.Context, userID string, date calendar.Date) (map[string]bool, error) {
	entries, err := l.ListCompletions(ctx, userID, storage.CompletionFilter{From: date, To: date})
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsCompleted {
			done[e.HabitID] = true
		}
	}
	return done, nil
}

// EntriesByHabit groups userID's entries in [from, to] by habit id.
func (l *Ledger) EntriesByHabit(ctx context.Context, userID string, from, to calendar.Date) (map[string][]models.CompletionEntry, error) {
	entries, err := l.ListCompletions(ctx, userID, storage.CompletionFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	byHabit := make(map[string][]models.CompletionEntry)
	for _, e := range entries {
		byHabit[e.HabitID] = append(byHabit[e.HabitID], e)
	}
	return byHabit, nil
}
