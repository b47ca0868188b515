package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
	"github.com/julianstephens/daystreak/internal/tracker"
)

func newTestContext(t *testing.T, user string) *Context {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	clock := &calendar.FixedClock{T: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewContext(context.Background(), &config.Config{User: user, Timezone: "UTC"}, store,
		tracker.Options{Clock: clock, Location: time.UTC})
}

func TestNewContextLogsSessionRefreshes(t *testing.T) {
	prev := logger.Logger
	t.Cleanup(func() { logger.Logger = prev })
	var buf bytes.Buffer
	logger.InitWriter(&buf, log.DebugLevel)

	ctx := newTestContext(t, "alice")
	habit, err := ctx.Session.Add(ctx.Ctx, tracker.HabitInput{
		Title: "Read", Category: "learning", Frequency: constants.FrequencyDaily,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Session refreshed")
	assert.Contains(t, buf.String(), "habits=1")
	assert.Contains(t, buf.String(), "done=0")

	buf.Reset()
	_, err = ctx.Session.MarkComplete(ctx.Ctx, habit.ID)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "done=1")
}

func TestUserID(t *testing.T) {
	id, err := newTestContext(t, "alice").UserID()
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	_, err = newTestContext(t, "").UserID()
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "Read", Truncate("Read", 10))
	assert.Equal(t, "Medit…", Truncate("Meditation", 6))
	assert.Equal(t, "ab  ", Pad("ab", 4))
	assert.Equal(t, "abcdef", Pad("abcdef", 4))
	assert.Equal(t, "01234567", ShortID("0123456789abcdef"))
	assert.Equal(t, "abc", ShortID("abc"))
}
