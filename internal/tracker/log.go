package tracker

import (
	"context"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/schedule"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/streak"
)

// DayMark is one cell of the habit log.
type DayMark int

const (
	MarkNotDue DayMark = iota
	MarkMissed
	MarkDone
	MarkBeforeCreation
)

// LogRow is one habit's history across the log window.
type LogRow struct {
	Habit models.Habit
	Marks []DayMark
}

// HabitLog is the completion grid rendered by `habit log`.
type HabitLog struct {
	Days []calendar.Date
	Rows []LogRow
}

// Log builds the completion grid for the last days days, ending today.
// With ref set only that habit is included.
func (s *Service) Log(ctx context.Context, userID, ref string, days int) (HabitLog, error) {
	if userID == "" || days <= 0 {
		return HabitLog{}, nil
	}

	var habits []models.Habit
	if ref != "" {
		h, err := s.ResolveHabit(ctx, userID, ref, false)
		if err != nil {
			return HabitLog{}, err
		}
		habits = []models.Habit{h}
	} else {
		views, err := s.FetchHabits(ctx, userID)
		if err != nil {
			return HabitLog{}, err
		}
		for _, v := range views {
			habits = append(habits, v.Habit)
		}
	}

	today := s.Today()
	window := calendar.Range(today, days)
	entries, err := s.ledger.ListCompletions(ctx, userID, storage.CompletionFilter{From: window[0], To: today})
	if err != nil {
		return HabitLog{}, err
	}
	done := make(map[string]map[calendar.Date]bool)
	for _, e := range entries {
		if done[e.HabitID] == nil {
			done[e.HabitID] = make(map[calendar.Date]bool)
		}
		done[e.HabitID][e.Date] = true
	}

	log := HabitLog{Days: window}
	for _, h := range habits {
		created := calendar.FromTime(h.CreatedAt, s.loc)
		row := LogRow{Habit: h, Marks: make([]DayMark, len(window))}
		for i, day := range window {
			switch {
			case done[h.ID][day] || streak.CompletedOn(h, day, s.loc):
				row.Marks[i] = MarkDone
			case day.Before(created):
				row.Marks[i] = MarkBeforeCreation
			case schedule.IsDue(h, day):
				row.Marks[i] = MarkMissed
			default:
				row.Marks[i] = MarkNotDue
			}
		}
		log.Rows = append(log.Rows, row)
	}
	return log, nil
}
