package streak

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/ledger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

const user = "alice"

type globalFixture struct {
	store  *sqlite.Store
	ledger *ledger.Ledger
	global *Global
	clock  *calendar.FixedClock
}

func setupGlobal(t *testing.T) *globalFixture {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "streak.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	clock := &calendar.FixedClock{T: at("2024-01-01", 12)}
	l := ledger.New(store)
	return &globalFixture{store: store, ledger: l, global: NewGlobal(store, l, clock, time.UTC), clock: clock}
}

func (f *globalFixture) addHabit(t *testing.T, h models.Habit) {
	t.Helper()
	h.UserID = user
	require.NoError(t, f.store.CreateHabit(context.Background(), h))
}

func (f *globalFixture) complete(t *testing.T, habitID, day string) {
	t.Helper()
	d := calendar.MustParse(day)
	_, err := f.ledger.RecordCompletion(context.Background(), user, habitID, d, at(day, 9), "c")
	require.NoError(t, err)
}

func TestRecordCreatedLazily(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()

	rec, err := f.global.Record(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, rec.CurrentStreak)
	assert.Zero(t, rec.LongestStreak)
	assert.Zero(t, rec.TotalHabitsCompleted)
	assert.Nil(t, rec.LastStreakDate)

	again, err := f.global.Record(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	_, err = f.global.Record(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestAdvanceIfDayCompleteIsIdempotent(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	f.addHabit(t, newDaily("read"))
	f.complete(t, "read", "2024-01-01")

	today := calendar.MustParse("2024-01-02")
	first, err := f.global.AdvanceIfDayComplete(ctx, user, today)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, 1, first.TotalHabitsCompleted)
	require.NotNil(t, first.LastStreakDate)
	assert.Equal(t, today, *first.LastStreakDate)

	f.clock.Advance(time.Hour)
	second, err := f.global.AdvanceIfDayComplete(ctx, user, today)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEmptyDueSetNeverAdvances(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()

	// No habits at all.
	rec, err := f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-02"))
	require.NoError(t, err)
	assert.Zero(t, rec.CurrentStreak)
	assert.Nil(t, rec.LastStreakDate)

	// A Monday-only habit on a Tuesday (2024-01-02) is not due.
	f.addHabit(t, models.Habit{ID: "gym", Title: "gym", Category: "c", Frequency: constants.FrequencyWeekly,
		DaysOfWeek: []time.Weekday{time.Monday}, CreatedAt: at("2024-01-01", 0)})
	rec, err = f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-03"))
	require.NoError(t, err)
	assert.Zero(t, rec.CurrentStreak)
}

func TestPartialDayDoesNotAdvance(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	f.addHabit(t, newDaily("read"))
	f.addHabit(t, newDaily("walk"))
	f.complete(t, "read", "2024-01-01")

	rec, err := f.global.AdvanceForCompletedDay(ctx, user, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)
	assert.Zero(t, rec.CurrentStreak)
	assert.Nil(t, rec.LastStreakDate)

	rec, err = f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-02"))
	require.NoError(t, err)
	assert.Zero(t, rec.CurrentStreak)
}

func TestConsecutiveDaysAndReset(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	f.addHabit(t, newDaily("read"))

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		f.complete(t, "read", d)
		_, err := f.global.AdvanceForCompletedDay(ctx, user, calendar.MustParse(d))
		require.NoError(t, err)
	}
	rec, err := f.global.Record(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.CurrentStreak)
	assert.Equal(t, 3, rec.LongestStreak)
	assert.Equal(t, 3, rec.TotalHabitsCompleted)
	assert.Equal(t, calendar.MustParse("2024-01-04"), *rec.LastStreakDate)

	// 2024-01-04 skipped; the gap is only noticed on the next success.
	rec, err = f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 3, rec.CurrentStreak)

	f.complete(t, "read", "2024-01-05")
	rec, err = f.global.AdvanceForCompletedDay(ctx, user, calendar.MustParse("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 3, rec.LongestStreak)
	assert.Equal(t, 4, rec.TotalHabitsCompleted)
}

func TestTriggersDoNotDoubleCount(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	f.addHabit(t, newDaily("read"))
	f.addHabit(t, newDaily("walk"))
	f.complete(t, "read", "2024-01-01")
	f.complete(t, "walk", "2024-01-01")

	afterAction, err := f.global.AdvanceForCompletedDay(ctx, user, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, afterAction.CurrentStreak)
	assert.Equal(t, 2, afterAction.TotalHabitsCompleted)

	// The next day's fetch evaluates the same day and must not count it again.
	nextDay, err := f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, afterAction, nextDay)

	again, err := f.global.AdvanceForCompletedDay(ctx, user, calendar.MustParse("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, afterAction, again)
}

func TestOlderDayNeverRewindsStreak(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	f.addHabit(t, newDaily("read"))

	for _, d := range []string{"2024-01-01", "2024-01-02"} {
		f.complete(t, "read", d)
		_, err := f.global.AdvanceForCompletedDay(ctx, user, calendar.MustParse(d))
		require.NoError(t, err)
	}

	// Same-day fetch after the action evaluates yesterday, which is behind the anchor.
	rec, err := f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.CurrentStreak)
	assert.Equal(t, 2, rec.TotalHabitsCompleted)
	assert.Equal(t, calendar.MustParse("2024-01-03"), *rec.LastStreakDate)
}

func TestHistoryCountsAsCompletion(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	h := newDaily("read")
	h.CompletionHistory = []time.Time{at("2024-01-01", 7)}
	f.addHabit(t, h)

	rec, err := f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
}

func TestHabitsCreatedLaterAreNotDue(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	f.addHabit(t, newDaily("read"))
	late := newDaily("walk")
	late.CreatedAt = at("2024-01-02", 8)
	f.addHabit(t, late)
	f.complete(t, "read", "2024-01-01")

	rec, err := f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.TotalHabitsCompleted)
}

func TestDeletedHabitsAreIgnored(t *testing.T) {
	f := setupGlobal(t)
	ctx := context.Background()
	f.addHabit(t, newDaily("read"))
	f.addHabit(t, newDaily("walk"))
	f.complete(t, "read", "2024-01-01")
	require.NoError(t, f.store.DeleteHabit(ctx, "walk", time.Now()))

	rec, err := f.global.AdvanceIfDayComplete(ctx, user, calendar.MustParse("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
}

type brokenStore struct {
	storage.Provider
}

func (brokenStore) GetStreakRecord(context.Context, string) (models.StreakRecord, error) {
	return models.StreakRecord{}, errors.New("connection reset")
}

func TestStoreFailureIsPersistenceError(t *testing.T) {
	g := NewGlobal(brokenStore{}, nil, nil, nil)
	_, err := g.AdvanceIfDayComplete(context.Background(), user, calendar.MustParse("2024-01-02"))
	assert.True(t, apperrors.IsPersistence(err))
}
