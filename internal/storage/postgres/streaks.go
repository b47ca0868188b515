package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

func (s *Store) GetStreakRecord(ctx context.Context, userID string) (models.StreakRecord, error) {
	var r models.StreakRecord
	var last calendar.Date

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, current_streak, longest_streak, last_streak_date, total_habits_completed, updated_at
		FROM streak_records WHERE user_id = $1`, userID).
		Scan(&r.ID, &r.UserID, &r.CurrentStreak, &r.LongestStreak, &last, &r.TotalHabitsCompleted, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StreakRecord{}, fmt.Errorf("streak record for %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return models.StreakRecord{}, err
	}
	if !last.IsZero() {
		r.LastStreakDate = &last
	}
	return r, nil
}

func (s *Store) SaveStreakRecord(ctx context.Context, record models.StreakRecord) error {
	var last any
	if record.LastStreakDate != nil {
		last = *record.LastStreakDate
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streak_records (id, user_id, current_streak, longest_streak, last_streak_date, total_habits_completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_streak_date = EXCLUDED.last_streak_date,
			total_habits_completed = EXCLUDED.total_habits_completed,
			updated_at = EXCLUDED.updated_at`,
		record.ID, record.UserID, record.CurrentStreak, record.LongestStreak, last,
		record.TotalHabitsCompleted, record.UpdatedAt)
	return err
}
