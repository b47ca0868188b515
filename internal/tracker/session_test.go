package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

func TestSessionNotifiesListeners(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	session := NewSession(f.svc, user)

	var calls int
	var last []models.HabitView
	unsubscribe := session.Subscribe(func(habits []models.HabitView) {
		calls++
		last = habits
	})

	h, err := session.Add(ctx, HabitInput{Title: "Read", Category: "mind", Frequency: constants.FrequencyDaily})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, last, 1)
	assert.False(t, last[0].IsCompletedToday)

	res, err := session.MarkComplete(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)
	assert.Equal(t, 2, calls)
	assert.True(t, last[0].IsCompletedToday)

	// A repeated completion changes nothing, so nobody is notified.
	res, err = session.MarkComplete(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted)
	assert.Equal(t, 2, calls)

	unsubscribe()
	require.NoError(t, session.Delete(ctx, h.ID))
	assert.Equal(t, 2, calls)
	assert.Empty(t, session.Habits())

	_, err = session.Restore(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, session.Habits(), 1)
}

func TestSessionHabitsIsACopy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	session := NewSession(f.svc, user)
	_, err := session.Add(ctx, HabitInput{Title: "Read", Category: "mind", Frequency: constants.FrequencyDaily})
	require.NoError(t, err)

	habits := session.Habits()
	habits[0].Title = "changed"
	assert.Equal(t, "Read", session.Habits()[0].Title)
	assert.Equal(t, user, session.UserID())
	assert.Same(t, f.svc, session.Service())
}

func TestSessionUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	session := NewSession(f.svc, user)
	h, err := session.Add(ctx, HabitInput{Title: "Read", Category: "mind", Frequency: constants.FrequencyDaily})
	require.NoError(t, err)

	category := "learning"
	_, err = session.Update(ctx, h.ID, HabitPatch{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "learning", session.Habits()[0].Category)
}
