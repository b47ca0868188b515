package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

const habitColumns = `id, user_id, title, description, category, frequency, days_of_week, days_of_month,
	created_at, deleted_at, streak, longest_streak, last_completed_at, completion_history`

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var frequency string
	var daysOfWeek, daysOfMonth []int64
	var deletedAt, lastCompletedAt sql.NullTime
	var history []byte

	err := row.Scan(&h.ID, &h.UserID, &h.Title, &h.Description, &h.Category, &frequency,
		pq.Array(&daysOfWeek), pq.Array(&daysOfMonth), &h.CreatedAt, &deletedAt,
		&h.Streak, &h.LongestStreak, &lastCompletedAt, &history)
	if err != nil {
		return models.Habit{}, err
	}

	h.Frequency = constants.Frequency(frequency)
	for _, d := range daysOfWeek {
		h.DaysOfWeek = append(h.DaysOfWeek, time.Weekday(d))
	}
	for _, d := range daysOfMonth {
		h.DaysOfMonth = append(h.DaysOfMonth, int(d))
	}
	h.DeletedAt = timePtr(deletedAt)
	h.LastCompletedAt = timePtr(lastCompletedAt)
	if h.CompletionHistory, err = storage.DecodeHistory(history); err != nil {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, err)
	}
	return h, nil
}

func habitArrays(h models.Habit) (daysOfWeek, daysOfMonth []int64) {
	daysOfWeek = make([]int64, 0, len(h.DaysOfWeek))
	for _, d := range h.DaysOfWeek {
		daysOfWeek = append(daysOfWeek, int64(d))
	}
	daysOfMonth = make([]int64, 0, len(h.DaysOfMonth))
	for _, d := range h.DaysOfMonth {
		daysOfMonth = append(daysOfMonth, int64(d))
	}
	return daysOfWeek, daysOfMonth
}

func (s *Store) ListHabits(ctx context.Context, filter storage.HabitFilter) ([]models.Habit, error) {
	query := "SELECT " + habitColumns + " FROM habits WHERE 1=1"
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = $1 AND deleted_at IS NULL", id)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, storage.ErrNotFound)
	}
	return h, err
}

func (s *Store) CreateHabit(ctx context.Context, habit models.Habit) error {
	history, err := storage.EncodeHistory(habit.CompletionHistory)
	if err != nil {
		return err
	}
	daysOfWeek, daysOfMonth := habitArrays(habit)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		habit.ID, habit.UserID, habit.Title, habit.Description, habit.Category, string(habit.Frequency),
		pq.Array(daysOfWeek), pq.Array(daysOfMonth), habit.CreatedAt, nullTime(habit.DeletedAt),
		habit.Streak, habit.LongestStreak, nullTime(habit.LastCompletedAt), history)
	if isUniqueViolation(err) {
		return fmt.Errorf("habit %s: %w", habit.ID, storage.ErrDuplicate)
	}
	return err
}

func (s *Store) UpdateHabit(ctx context.Context, habit models.Habit) error {
	history, err := storage.EncodeHistory(habit.CompletionHistory)
	if err != nil {
		return err
	}
	daysOfWeek, daysOfMonth := habitArrays(habit)

	result, err := s.db.ExecContext(ctx, `
		UPDATE habits SET
			title = $1, description = $2, category = $3, frequency = $4,
			days_of_week = $5, days_of_month = $6,
			streak = $7, longest_streak = $8, last_completed_at = $9, completion_history = $10
		WHERE id = $11 AND deleted_at IS NULL`,
		habit.Title, habit.Description, habit.Category, string(habit.Frequency),
		pq.Array(daysOfWeek), pq.Array(daysOfMonth),
		habit.Streak, habit.LongestStreak, nullTime(habit.LastCompletedAt), history,
		habit.ID)
	if err != nil {
		return err
	}
	return expectRow(result, "habit "+habit.ID)
}

func (s *Store) DeleteHabit(ctx context.Context, id string, at time.Time) error {
	now := at.UTC()
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE habits SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL", now, id)
		if err != nil {
			return err
		}
		if err := expectRow(result, "habit "+id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE completions SET deleted_at = $1 WHERE habit_id = $2 AND deleted_at IS NULL", now, id)
		return err
	})
}

func (s *Store) RestoreHabit(ctx context.Context, id string) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE habits SET deleted_at = NULL WHERE id = $1 AND deleted_at IS NOT NULL", id)
		if err != nil {
			return err
		}
		if err := expectRow(result, "deleted habit "+id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE completions SET deleted_at = NULL WHERE habit_id = $1 AND deleted_at IS NOT NULL", id)
		return err
	})
}

func expectRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}
