package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daystreak/internal/analytics"
	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

const user = "alice"

func at(day string, hour int) time.Time {
	return calendar.MustParse(day).StartIn(time.UTC).Add(time.Duration(hour) * time.Hour)
}

type fixture struct {
	store *sqlite.Store
	clock *calendar.FixedClock
	svc   *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	clock := &calendar.FixedClock{T: at("2024-01-01", 12)} // a Monday
	svc := NewService(store, Options{Clock: clock, Location: time.UTC, Picker: analytics.NewPicker(1)})
	return &fixture{store: store, clock: clock, svc: svc}
}

func (f *fixture) daily(t *testing.T, title string) models.Habit {
	t.Helper()
	h, err := f.svc.AddHabit(context.Background(), user, HabitInput{
		Title: title, Category: "health", Frequency: constants.FrequencyDaily,
	})
	require.NoError(t, err)
	return h
}

func (f *fixture) setDay(day string) {
	f.clock.Set(at(day, 12))
}

func TestMarkHabitCompleteChain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")

	res, err := f.svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)
	assert.NotEmpty(t, res.Entry.ID)
	assert.Equal(t, "health", res.Entry.Category)
	assert.Equal(t, 1, res.Habit.Streak)
	assert.Equal(t, 1, res.Record.CurrentStreak)
	require.NotNil(t, res.Record.LastStreakDate)
	assert.Equal(t, "2024-01-02", res.Record.LastStreakDate.String())

	stored, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Streak)
	assert.Len(t, stored.CompletionHistory, 1)

	again, err := f.svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)

	entries, err := f.store.ListCompletions(ctx, storage.CompletionFilter{HabitID: h.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rec := f.svc.FetchStreaks(ctx, user)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.TotalHabitsCompleted)
}

func TestStreakScenarioAcrossDays(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")

	steps := []struct {
		day          string
		complete     bool
		habitStreak  int
		globalStreak int
	}{
		{"2024-01-01", true, 1, 1},
		{"2024-01-02", true, 2, 2},
		{"2024-01-03", false, 2, 2},
		{"2024-01-04", true, 1, 1},
	}

	for _, s := range steps {
		f.setDay(s.day)
		if s.complete {
			res, err := f.svc.MarkHabitComplete(ctx, user, h.ID)
			require.NoError(t, err, s.day)
			assert.Equal(t, s.habitStreak, res.Habit.Streak, s.day)
			assert.Equal(t, s.globalStreak, res.Record.CurrentStreak, s.day)
			continue
		}
		rec := f.svc.FetchStreaks(ctx, user)
		assert.Equal(t, s.globalStreak, rec.CurrentStreak, s.day)
	}

	rec := f.svc.FetchStreaks(ctx, user)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, 3, rec.TotalHabitsCompleted)
}

func TestGlobalStreakNeedsEveryDueHabit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.daily(t, "Read")
	b := f.daily(t, "Run")

	res, err := f.svc.MarkHabitComplete(ctx, user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Record.CurrentStreak)

	res, err = f.svc.MarkHabitComplete(ctx, user, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.CurrentStreak)
	assert.Equal(t, 2, res.Record.TotalHabitsCompleted)

	// The next day's daily check must not count the same day again.
	f.setDay("2024-01-02")
	rec := f.svc.FetchStreaks(ctx, user)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.TotalHabitsCompleted)
}

func TestFetchStreaksAdvancesFromYesterday(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")

	// Completion written to the ledger without the per-action trigger.
	_, err := f.svc.ledger.RecordCompletion(ctx, user, h.ID, calendar.MustParse("2024-01-01"), at("2024-01-01", 9), "health")
	require.NoError(t, err)

	assert.Equal(t, 0, f.svc.FetchStreaks(ctx, user).CurrentStreak)

	f.setDay("2024-01-02")
	assert.Equal(t, 1, f.svc.FetchStreaks(ctx, user).CurrentStreak)
	assert.Equal(t, 1, f.svc.FetchStreaks(ctx, user).CurrentStreak)
}

func TestNotAuthenticated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")

	_, err := f.svc.MarkHabitComplete(ctx, "", h.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	_, err = f.svc.AddHabit(ctx, "", HabitInput{Title: "x", Category: "y", Frequency: constants.FrequencyDaily})
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	assert.ErrorIs(t, f.svc.DeleteHabit(ctx, "", h.ID), apperrors.ErrNotAuthenticated)

	views, err := f.svc.FetchHabits(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Zero(t, f.svc.FetchStreaks(ctx, "").CurrentStreak)

	stats := f.svc.GetTodayStats(ctx, "")
	assert.Equal(t, "2024-01-01", stats.Date.String())
	assert.Zero(t, stats.Total)

	summary := f.svc.Analytics(ctx, "")
	assert.Equal(t, analytics.TierStarter, summary.Tier)
	assert.Zero(t, summary.TotalCompletions)
}

func TestAddHabitValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input HabitInput
		field string
	}{
		{"missing title", HabitInput{Category: "c", Frequency: constants.FrequencyDaily}, "title"},
		{"missing category", HabitInput{Title: "t", Frequency: constants.FrequencyDaily}, "category"},
		{"weekly without days", HabitInput{Title: "t", Category: "c", Frequency: constants.FrequencyWeekly}, "days_of_week"},
		{"monthly without days", HabitInput{Title: "t", Category: "c", Frequency: constants.FrequencyMonthly}, "days_of_month"},
		{"unknown frequency", HabitInput{Title: "t", Category: "c", Frequency: "hourly"}, "frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddHabit(ctx, user, tt.input)
			var ve *apperrors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	habits, err := f.store.ListHabits(ctx, storage.HabitFilter{UserID: user})
	require.NoError(t, err)
	assert.Empty(t, habits, "rejected input must not be persisted")

	f.daily(t, "Read")
	_, err = f.svc.AddHabit(ctx, user, HabitInput{Title: " read ", Category: "c", Frequency: constants.FrequencyDaily})
	assert.True(t, apperrors.IsValidation(err))
}

func TestAddHabitNormalizesRecurrence(t *testing.T) {
	f := setup(t)
	h, err := f.svc.AddHabit(context.Background(), user, HabitInput{
		Title: "Gym", Category: "health", Frequency: constants.FrequencyWeekly,
		DaysOfWeek: []time.Weekday{time.Monday}, DaysOfMonth: []int{3},
	})
	require.NoError(t, err)
	assert.Nil(t, h.DaysOfMonth)
	assert.Equal(t, user, h.UserID)
	assert.Equal(t, at("2024-01-01", 12), h.CreatedAt)
	assert.True(t, f.svc.IsDue(h, calendar.MustParse("2024-01-08")))
	assert.False(t, f.svc.IsDue(h, calendar.MustParse("2024-01-09")))
}

func TestUpdateHabitKeepsDerivedFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")
	_, err := f.svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)

	title := "Read fiction"
	weekly := constants.FrequencyWeekly
	updated, err := f.svc.UpdateHabit(ctx, user, h.ID, HabitPatch{
		Title:      &title,
		Frequency:  &weekly,
		DaysOfWeek: []time.Weekday{time.Monday, time.Thursday},
	})
	require.NoError(t, err)
	assert.Equal(t, "Read fiction", updated.Title)
	assert.Equal(t, 1, updated.Streak)
	assert.Len(t, updated.CompletionHistory, 1)

	stored, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.FrequencyWeekly, stored.Frequency)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, stored.DaysOfWeek)
	assert.Equal(t, 1, stored.Streak)

	empty := ""
	_, err = f.svc.UpdateHabit(ctx, user, h.ID, HabitPatch{Category: &empty})
	assert.True(t, apperrors.IsValidation(err))
}

func TestDeleteAndRestore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")
	_, err := f.svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteHabit(ctx, user, h.ID))
	views, err := f.svc.FetchHabits(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, views)

	all, err := f.svc.ListHabits(ctx, user, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].DeletedAt)
	assert.True(t, all[0].DeletedAt.Equal(f.clock.Now()), "deleted_at comes from the service clock")

	_, err = f.svc.MarkHabitComplete(ctx, user, h.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	restored, err := f.svc.RestoreHabit(ctx, user, h.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	views, err = f.svc.FetchHabits(ctx, user)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsCompletedToday)

	_, err = f.svc.RestoreHabit(ctx, user, h.ID)
	assert.Error(t, err)
}

func TestOtherUsersHabitsAreInvisible(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")

	_, err := f.svc.MarkHabitComplete(ctx, "bob", h.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteHabit(ctx, "bob", h.ID), storage.ErrNotFound)

	views, err := f.svc.FetchHabits(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRepairHabit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")

	for _, day := range []string{"2023-12-30", "2023-12-31", "2024-01-01"} {
		_, err := f.svc.ledger.RecordCompletion(ctx, user, h.ID, calendar.MustParse(day), at(day, 8), "health")
		require.NoError(t, err)
	}

	stale, err := f.svc.HabitsNeedingRepair(ctx, user)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, h.ID, stale[0].ID)

	repaired, changed, err := f.svc.RepairHabit(ctx, user, h.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 3, repaired.Streak)
	assert.Equal(t, 3, repaired.LongestStreak)
	assert.Len(t, repaired.CompletionHistory, 3)

	_, changed, err = f.svc.RepairHabit(ctx, user, h.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	stale, err = f.svc.HabitsNeedingRepair(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestGetTodayStats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	read := f.daily(t, "Read")
	f.daily(t, "Run")
	_, err := f.svc.AddHabit(ctx, user, HabitInput{
		Title: "Swim", Category: "health", Frequency: constants.FrequencyWeekly,
		DaysOfWeek: []time.Weekday{time.Tuesday},
	})
	require.NoError(t, err)

	_, err = f.svc.MarkHabitComplete(ctx, user, read.ID)
	require.NoError(t, err)

	stats := f.svc.GetTodayStats(ctx, user)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)

	views, err := f.svc.FetchHabits(ctx, user)
	require.NoError(t, err)
	for _, v := range views {
		assert.Equal(t, v.ID == read.ID, v.IsCompletedToday, v.Title)
		assert.Equal(t, v.Title != "Swim", v.IsDueToday, v.Title)
	}
	stored, err := f.store.GetHabit(ctx, read.ID)
	require.NoError(t, err)
	assert.True(t, f.svc.IsCompletedToday(stored))

	f.setDay("2024-01-02")
	assert.False(t, f.svc.IsCompletedToday(stored), "yesterday's completion must not leak into today")
}

func TestResolveHabit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Morning Pages")

	got, err := f.svc.ResolveHabit(ctx, user, "morning pages", false)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)

	got, err = f.svc.ResolveHabit(ctx, user, h.ID[:8], false)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)

	_, err = f.svc.ResolveHabit(ctx, user, h.ID[:2], false)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, f.svc.DeleteHabit(ctx, user, h.ID))
	_, err = f.svc.ResolveHabit(ctx, user, "Morning Pages", false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	got, err = f.svc.ResolveHabit(ctx, user, "Morning Pages", true)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
}

func TestAnalyticsSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h := f.daily(t, "Read")

	for _, day := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		f.setDay(day)
		_, err := f.svc.MarkHabitComplete(ctx, user, h.ID)
		require.NoError(t, err)
	}

	s := f.svc.Analytics(ctx, user)
	assert.Equal(t, 3, s.TotalCompletions)
	assert.Equal(t, 3, s.Last7Days)
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 100.0, s.CompletionRate)
	assert.Equal(t, analytics.TierBuilding, s.Tier)
	require.Len(t, s.Categories, 1)
	assert.Equal(t, "health", s.Categories[0].Category)
	require.NotNil(t, s.MostProductiveHour)
	assert.Equal(t, 12, *s.MostProductiveHour)
	assert.NotEmpty(t, s.Message)
}

type brokenStore struct {
	storage.Provider
}

var errBroken = errors.New("connection reset")

func (brokenStore) ListHabits(context.Context, storage.HabitFilter) ([]models.Habit, error) {
	return nil, errBroken
}

func (brokenStore) GetStreakRecord(context.Context, string) (models.StreakRecord, error) {
	return models.StreakRecord{}, errBroken
}

func (brokenStore) GetHabit(context.Context, string) (models.Habit, error) {
	return models.Habit{}, errBroken
}

func TestPersistenceFailures(t *testing.T) {
	svc := NewService(brokenStore{}, Options{Clock: &calendar.FixedClock{T: at("2024-01-01", 12)}, Location: time.UTC})
	ctx := context.Background()

	_, err := svc.FetchHabits(ctx, user)
	assert.True(t, apperrors.IsPersistence(err))
	assert.ErrorIs(t, err, errBroken)

	_, err = svc.MarkHabitComplete(ctx, user, "x")
	assert.True(t, apperrors.IsPersistence(err))

	// Read-only aggregation degrades to zero values.
	assert.Zero(t, svc.FetchStreaks(ctx, user).CurrentStreak)
	assert.Zero(t, svc.GetTodayStats(ctx, user).Total)
	assert.Zero(t, svc.Analytics(ctx, user).TotalCompletions)
}

// flakyStore fails the next failUpdates calls to UpdateHabit.
type flakyStore struct {
	storage.Provider
	failUpdates int
}

func (f *flakyStore) UpdateHabit(ctx context.Context, habit models.Habit) error {
	if f.failUpdates > 0 {
		f.failUpdates--
		return errBroken
	}
	return f.Provider.UpdateHabit(ctx, habit)
}

func TestRetryAfterFailedHabitUpdateFinishesChain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	flaky := &flakyStore{Provider: f.store}
	svc := NewService(flaky, Options{Clock: f.clock, Location: time.UTC, Picker: analytics.NewPicker(1)})

	h, err := svc.AddHabit(ctx, user, HabitInput{Title: "Read", Category: "learning", Frequency: constants.FrequencyDaily})
	require.NoError(t, err)

	_, err = svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)

	f.setDay("2024-01-02")
	flaky.failUpdates = 1
	_, err = svc.MarkHabitComplete(ctx, user, h.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))

	stale, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Streak, "ledger entry written, habit not yet updated")

	res, err := svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted)
	assert.True(t, res.Resumed)
	assert.Equal(t, 2, res.Habit.Streak)
	assert.Equal(t, 2, res.Record.CurrentStreak)

	// A further call on the same day is a plain no-op.
	res, err = svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted)
	assert.False(t, res.Resumed)

	f.setDay("2024-01-03")
	res, err = svc.MarkHabitComplete(ctx, user, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Habit.Streak)
	assert.Equal(t, 3, res.Habit.LongestStreak)
	assert.Equal(t, 3, res.Record.CurrentStreak)
}
