// Package tracker wires the ledger, the streak trackers and analytics into
// the operations exposed to the command line.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/daystreak/internal/analytics"
	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/ledger"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/schedule"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/streak"
	"github.com/julianstephens/daystreak/internal/validation"
)

// minIDPrefix is the shortest id prefix ResolveHabit accepts.
const minIDPrefix = 4

// Options configures a Service. Zero values fall back to the wall clock,
// the local timezone and the process-wide random source.
type Options struct {
	Clock    calendar.Clock
	Location *time.Location
	Picker   analytics.Picker
}

type Service struct {
	store     storage.Provider
	ledger    *ledger.Ledger
	global    *streak.Global
	validator *validation.Validator
	clock     calendar.Clock
	loc       *time.Location
	picker    analytics.Picker
}

func NewService(store storage.Provider, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = calendar.SystemClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	l := ledger.New(store)
	return &Service{
		store:     store,
		ledger:    l,
		global:    streak.NewGlobal(store, l, opts.Clock, opts.Location),
		validator: validation.New(),
		clock:     opts.Clock,
		loc:       opts.Location,
		picker:    opts.Picker,
	}
}

// Today is the current calendar date in the service's timezone.
func (s *Service) Today() calendar.Date {
	return calendar.Today(s.clock, s.loc)
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// IsDue reports whether habit is scheduled on date.
func (s *Service) IsDue(habit models.Habit, date calendar.Date) bool {
	return schedule.IsDue(habit, date)
}

// IsCompletedToday reports whether habit is due and done today.
func (s *Service) IsCompletedToday(habit models.Habit) bool {
	return streak.IsCompletedToday(habit, s.clock.Now(), s.loc)
}

// CompletionResult describes the outcome of MarkHabitComplete. Resumed is
// set when an already recorded completion still had to be carried through
// the habit and global streak steps.
type CompletionResult struct {
	Habit            models.Habit
	Entry            models.CompletionEntry
	AlreadyCompleted bool
	Resumed          bool
	Record           models.StreakRecord
}

// MarkHabitComplete records today's completion of habitID. Completing a
// habit twice on one day is not an error: the result reports
// AlreadyCompleted and no second entry is written.
//
// The steps run in order: ledger append, habit update, global streak. A
// failure after the ledger append is returned and the entry stays in the
// ledger; calling again finishes the chain from the ledger.
func (s *Service) MarkHabitComplete(ctx context.Context, userID, habitID string) (CompletionResult, error) {
	if userID == "" {
		return CompletionResult{}, apperrors.ErrNotAuthenticated
	}
	habit, err := s.ownedHabit(ctx, userID, habitID, false)
	if err != nil {
		return CompletionResult{}, err
	}

	now := s.clock.Now()
	today := calendar.FromTime(now, s.loc)

	entry, err := s.ledger.RecordCompletion(ctx, userID, habit.ID, today, now, habit.Category)
	if errors.Is(err, apperrors.ErrAlreadyCompleted) {
		return s.resumeCompletion(ctx, userID, habit, today)
	}
	if err != nil {
		return CompletionResult{}, err
	}

	result := CompletionResult{Habit: habit, Entry: entry}
	if updated, applied := streak.ApplyCompletion(habit, now, s.loc); applied {
		if err := s.store.UpdateHabit(ctx, updated); err != nil {
			logger.Error("Failed to update habit after completion", "habit", habit.ID, "error", err)
			return result, apperrors.Persistence("update habit", err)
		}
		result.Habit = updated
	}

	record, err := s.global.AdvanceForCompletedDay(ctx, userID, today)
	if err != nil {
		logger.Error("Failed to advance global streak", "user", userID, "day", today, "error", err)
		return result, err
	}
	result.Record = record

	logger.Info("Habit completed", "habit", habit.ID, "date", today, "streak", result.Habit.Streak)
	return result, nil
}

// resumeCompletion handles a completion the ledger already holds. When an
// earlier call stopped before the habit update, the habit is rebuilt from
// the ledger and the global streak is advanced for today.
func (s *Service) resumeCompletion(ctx context.Context, userID string, habit models.Habit, today calendar.Date) (CompletionResult, error) {
	result := CompletionResult{Habit: habit, AlreadyCompleted: true}
	if streak.CompletedOn(habit, today, s.loc) {
		return result, nil
	}

	entries, err := s.ledger.ListCompletions(ctx, userID, storage.CompletionFilter{HabitID: habit.ID})
	if err != nil {
		return result, err
	}
	rebuilt := streak.Recompute(habit, entries, s.loc)
	if err := s.store.UpdateHabit(ctx, rebuilt); err != nil {
		logger.Error("Failed to update habit while resuming completion", "habit", habit.ID, "error", err)
		return result, apperrors.Persistence("update habit", err)
	}
	result.Habit = rebuilt
	result.Resumed = true

	record, err := s.global.AdvanceForCompletedDay(ctx, userID, today)
	if err != nil {
		logger.Error("Failed to advance global streak", "user", userID, "day", today, "error", err)
		return result, err
	}
	result.Record = record
	logger.Info("Resumed habit completion from ledger", "habit", habit.ID, "date", today, "streak", rebuilt.Streak)
	return result, nil
}

// FetchHabits returns userID's live habits projected onto today. A missing
// user yields an empty list.
func (s *Service) FetchHabits(ctx context.Context, userID string) ([]models.HabitView, error) {
	return s.habitViews(ctx, userID, false)
}

// ListHabits is FetchHabits with the option to include deleted habits.
func (s *Service) ListHabits(ctx context.Context, userID string, includeDeleted bool) ([]models.HabitView, error) {
	return s.habitViews(ctx, userID, includeDeleted)
}

func (s *Service) habitViews(ctx context.Context, userID string, includeDeleted bool) ([]models.HabitView, error) {
	if userID == "" {
		return []models.HabitView{}, nil
	}
	habits, err := s.store.ListHabits(ctx, storage.HabitFilter{UserID: userID, IncludeDeleted: includeDeleted})
	if err != nil {
		return nil, apperrors.Persistence("list habits", err)
	}
	today := s.Today()
	entries, err := s.ledger.ListCompletions(ctx, userID, storage.CompletionFilter{From: today, To: today})
	if err != nil {
		return nil, err
	}

	views := make([]models.HabitView, 0, len(habits))
	for _, h := range habits {
		views = append(views, streak.Project(h, entries, today, s.loc))
	}
	return views, nil
}

// FetchStreaks returns the global streak record after running the daily
// evaluation of yesterday. Store failures degrade to a zero record.
func (s *Service) FetchStreaks(ctx context.Context, userID string) models.StreakRecord {
	if userID == "" {
		return models.StreakRecord{}
	}
	record, err := s.global.AdvanceIfDayComplete(ctx, userID, s.Today())
	if err != nil {
		logger.Warn("Failed to fetch streaks", "user", userID, "error", err)
		return models.StreakRecord{UserID: userID}
	}
	return record
}

// GetTodayStats counts today's due habits and how many of them are done.
func (s *Service) GetTodayStats(ctx context.Context, userID string) models.TodayStats {
	stats := models.TodayStats{Date: s.Today()}
	views, err := s.FetchHabits(ctx, userID)
	if err != nil {
		logger.Warn("Failed to compute today's stats", "user", userID, "error", err)
		return stats
	}
	for _, v := range views {
		if !v.IsDueToday {
			continue
		}
		stats.Total++
		if v.IsCompletedToday {
			stats.Completed++
		}
	}
	return stats
}

// HabitInput holds the user-editable fields of a new habit.
type HabitInput struct {
	Title       string
	Description string
	Category    string
	Frequency   constants.Frequency
	DaysOfWeek  []time.Weekday
	DaysOfMonth []int
}

// AddHabit validates input and creates a habit owned by userID.
func (s *Service) AddHabit(ctx context.Context, userID string, input HabitInput) (models.Habit, error) {
	if userID == "" {
		return models.Habit{}, apperrors.ErrNotAuthenticated
	}

	habit := models.Habit{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             strings.TrimSpace(input.Title),
		Description:       strings.TrimSpace(input.Description),
		Category:          strings.TrimSpace(input.Category),
		Frequency:         input.Frequency,
		DaysOfWeek:        input.DaysOfWeek,
		DaysOfMonth:       input.DaysOfMonth,
		CreatedAt:         s.clock.Now(),
		CompletionHistory: []time.Time{},
	}
	normalizeRecurrence(&habit)
	if err := s.validator.ValidateHabit(habit); err != nil {
		return models.Habit{}, err
	}
	if err := s.checkTitleAvailable(ctx, userID, habit.Title, ""); err != nil {
		return models.Habit{}, err
	}

	if err := s.store.CreateHabit(ctx, habit); err != nil {
		logger.Error("Failed to create habit", "title", habit.Title, "error", err)
		return models.Habit{}, apperrors.Persistence("create habit", err)
	}
	logger.Info("Habit created", "habit", habit.ID, "title", habit.Title)
	return habit, nil
}

// HabitPatch lists the editable fields to change; nil leaves a field alone.
// Streak counters and history are never editable.
type HabitPatch struct {
	Title       *string
	Description *string
	Category    *string
	Frequency   *constants.Frequency
	DaysOfWeek  []time.Weekday
	DaysOfMonth []int
}

// UpdateHabit applies patch to habitID after validating the result.
func (s *Service) UpdateHabit(ctx context.Context, userID, habitID string, patch HabitPatch) (models.Habit, error) {
	if userID == "" {
		return models.Habit{}, apperrors.ErrNotAuthenticated
	}
	habit, err := s.ownedHabit(ctx, userID, habitID, false)
	if err != nil {
		return models.Habit{}, err
	}

	if patch.Title != nil {
		habit.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		habit.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		habit.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Frequency != nil {
		habit.Frequency = *patch.Frequency
	}
	if patch.DaysOfWeek != nil {
		habit.DaysOfWeek = patch.DaysOfWeek
	}
	if patch.DaysOfMonth != nil {
		habit.DaysOfMonth = patch.DaysOfMonth
	}
	normalizeRecurrence(&habit)

	if err := s.validator.ValidateHabit(habit); err != nil {
		return models.Habit{}, err
	}
	if patch.Title != nil {
		if err := s.checkTitleAvailable(ctx, userID, habit.Title, habit.ID); err != nil {
			return models.Habit{}, err
		}
	}
	if err := s.store.UpdateHabit(ctx, habit); err != nil {
		return models.Habit{}, apperrors.Persistence("update habit", err)
	}
	logger.Info("Habit updated", "habit", habit.ID)
	return habit, nil
}

// DeleteHabit soft-deletes habitID and its ledger entries.
func (s *Service) DeleteHabit(ctx context.Context, userID, habitID string) error {
	if userID == "" {
		return apperrors.ErrNotAuthenticated
	}
	habit, err := s.ownedHabit(ctx, userID, habitID, false)
	if err != nil {
		return err
	}
	if err := s.store.DeleteHabit(ctx, habit.ID, s.clock.Now()); err != nil {
		return apperrors.Persistence("delete habit", err)
	}
	logger.Info("Habit deleted", "habit", habit.ID)
	return nil
}

// RestoreHabit undoes DeleteHabit, entries included.
func (s *Service) RestoreHabit(ctx context.Context, userID, habitID string) (models.Habit, error) {
	if userID == "" {
		return models.Habit{}, apperrors.ErrNotAuthenticated
	}
	habit, err := s.ownedHabit(ctx, userID, habitID, true)
	if err != nil {
		return models.Habit{}, err
	}
	if habit.DeletedAt == nil {
		return models.Habit{}, fmt.Errorf("habit %q is not deleted", habit.Title)
	}
	if err := s.store.RestoreHabit(ctx, habit.ID); err != nil {
		return models.Habit{}, apperrors.Persistence("restore habit", err)
	}
	habit.DeletedAt = nil
	logger.Info("Habit restored", "habit", habit.ID)
	return habit, nil
}

// RepairHabit rebuilds habitID's cached streak fields from the ledger.
// It reports whether anything changed.
func (s *Service) RepairHabit(ctx context.Context, userID, habitID string) (models.Habit, bool, error) {
	if userID == "" {
		return models.Habit{}, false, apperrors.ErrNotAuthenticated
	}
	habit, err := s.ownedHabit(ctx, userID, habitID, false)
	if err != nil {
		return models.Habit{}, false, err
	}
	entries, err := s.ledger.ListCompletions(ctx, userID, storage.CompletionFilter{HabitID: habit.ID})
	if err != nil {
		return models.Habit{}, false, err
	}
	if !streak.NeedsRepair(habit, entries, s.loc) {
		return habit, false, nil
	}

	repaired := streak.Recompute(habit, entries, s.loc)
	if err := s.store.UpdateHabit(ctx, repaired); err != nil {
		return models.Habit{}, false, apperrors.Persistence("repair habit", err)
	}
	logger.Info("Habit repaired", "habit", habit.ID, "streak", repaired.Streak, "longest", repaired.LongestStreak)
	return repaired, true, nil
}

// HabitsNeedingRepair lists live habits whose cached fields disagree with the ledger.
func (s *Service) HabitsNeedingRepair(ctx context.Context, userID string) ([]models.Habit, error) {
	if userID == "" {
		return nil, nil
	}
	habits, err := s.store.ListHabits(ctx, storage.HabitFilter{UserID: userID})
	if err != nil {
		return nil, apperrors.Persistence("list habits", err)
	}
	byHabit, err := s.ledger.EntriesByHabit(ctx, userID, calendar.Date{}, calendar.Date{})
	if err != nil {
		return nil, err
	}

	var stale []models.Habit
	for _, h := range habits {
		if streak.NeedsRepair(h, byHabit[h.ID], s.loc) {
			stale = append(stale, h)
		}
	}
	return stale, nil
}

// Analytics computes the summary shown by the stats command. Store
// failures degrade to a summary over no data.
func (s *Service) Analytics(ctx context.Context, userID string) analytics.Summary {
	in := analytics.Input{Today: s.Today(), Location: s.loc, Picker: s.picker}
	if userID == "" {
		return analytics.Summarize(in)
	}

	habits, err := s.store.ListHabits(ctx, storage.HabitFilter{UserID: userID})
	if err != nil {
		logger.Warn("Failed to load habits for analytics", "user", userID, "error", err)
		return analytics.Summarize(in)
	}
	entries, err := s.ledger.ListCompletions(ctx, userID, storage.CompletionFilter{})
	if err != nil {
		logger.Warn("Failed to load completions for analytics", "user", userID, "error", err)
		return analytics.Summarize(in)
	}

	in.Habits = habits
	in.Entries = entries
	in.Record = s.FetchStreaks(ctx, userID)
	return analytics.Summarize(in)
}

// ResolveHabit finds a habit by id, case-insensitive title, or unique id prefix.
func (s *Service) ResolveHabit(ctx context.Context, userID, ref string, includeDeleted bool) (models.Habit, error) {
	if userID == "" {
		return models.Habit{}, apperrors.ErrNotAuthenticated
	}
	ref = strings.TrimSpace(ref)
	habits, err := s.store.ListHabits(ctx, storage.HabitFilter{UserID: userID, IncludeDeleted: includeDeleted})
	if err != nil {
		return models.Habit{}, apperrors.Persistence("list habits", err)
	}

	for _, h := range habits {
		if h.ID == ref {
			return h, nil
		}
	}
	for _, h := range habits {
		if strings.EqualFold(h.Title, ref) {
			return h, nil
		}
	}

	var matches []models.Habit
	if len(ref) >= minIDPrefix {
		for _, h := range habits {
			if strings.HasPrefix(h.ID, ref) {
				matches = append(matches, h)
			}
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return models.Habit{}, fmt.Errorf("habit %q: %w", ref, storage.ErrNotFound)
	default:
		return models.Habit{}, fmt.Errorf("habit %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// ownedHabit loads habitID and checks that it belongs to userID.
func (s *Service) ownedHabit(ctx context.Context, userID, habitID string, includeDeleted bool) (models.Habit, error) {
	if !includeDeleted {
		habit, err := s.store.GetHabit(ctx, habitID)
		if errors.Is(err, storage.ErrNotFound) {
			return models.Habit{}, err
		}
		if err != nil {
			return models.Habit{}, apperrors.Persistence("get habit", err)
		}
		if habit.UserID != userID {
			return models.Habit{}, fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
		}
		return habit, nil
	}

	habits, err := s.store.ListHabits(ctx, storage.HabitFilter{UserID: userID, IncludeDeleted: true})
	if err != nil {
		return models.Habit{}, apperrors.Persistence("list habits", err)
	}
	for _, h := range habits {
		if h.ID == habitID {
			return h, nil
		}
	}
	return models.Habit{}, fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
}

func (s *Service) checkTitleAvailable(ctx context.Context, userID, title, exceptID string) error {
	habits, err := s.store.ListHabits(ctx, storage.HabitFilter{UserID: userID})
	if err != nil {
		return apperrors.Persistence("list habits", err)
	}
	for _, h := range habits {
		if h.ID != exceptID && strings.EqualFold(h.Title, title) {
			return apperrors.NewValidationError("title", "a habit named %q already exists", h.Title)
		}
	}
	return nil
}

// normalizeRecurrence drops day sets that do not apply to the frequency.
func normalizeRecurrence(h *models.Habit) {
	switch h.Frequency {
	case constants.FrequencyDaily:
		h.DaysOfWeek = nil
		h.DaysOfMonth = nil
	case constants.FrequencyWeekly:
		h.DaysOfMonth = nil
	case constants.FrequencyMonthly:
		h.DaysOfWeek = nil
	}
}
