package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

const habitColumns = `id, user_id, title, description, category, frequency, days_of_week, days_of_month,
	created_at, deleted_at, streak, longest_streak, last_completed_at, completion_history`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var frequency, daysOfWeek, daysOfMonth, createdAt, history string
	var deletedAt, lastCompletedAt sql.NullString

	err := row.Scan(&h.ID, &h.UserID, &h.Title, &h.Description, &h.Category, &frequency,
		&daysOfWeek, &daysOfMonth, &createdAt, &deletedAt, &h.Streak, &h.LongestStreak,
		&lastCompletedAt, &history)
	if err != nil {
		return models.Habit{}, err
	}
	h.Frequency = constants.Frequency(frequency)

	if h.DaysOfWeek, err = storage.DecodeWeekdays([]byte(daysOfWeek)); err != nil {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, err)
	}
	if h.DaysOfMonth, err = storage.DecodeInts([]byte(daysOfMonth)); err != nil {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, err)
	}
	if h.CreatedAt, err = storage.ParseTimestamp(createdAt); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
	}
	if h.DeletedAt, err = storage.ParseNullTimestamp(deletedAt, "deleted_at"); err != nil {
		return models.Habit{}, err
	}
	if h.LastCompletedAt, err = storage.ParseNullTimestamp(lastCompletedAt, "last_completed_at"); err != nil {
		return models.Habit{}, err
	}
	if h.CompletionHistory, err = storage.DecodeHistory([]byte(history)); err != nil {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, err)
	}
	return h, nil
}

// habitArgs encodes the mutable columns shared by insert and update.
func habitArgs(h models.Habit) (daysOfWeek, daysOfMonth, history string, err error) {
	if daysOfWeek, err = storage.EncodeWeekdays(h.DaysOfWeek); err != nil {
		return
	}
	if daysOfMonth, err = storage.EncodeInts(h.DaysOfMonth); err != nil {
		return
	}
	history, err = storage.EncodeHistory(h.CompletionHistory)
	return
}

func (s *Store) ListHabits(ctx context.Context, filter storage.HabitFilter) ([]models.Habit, error) {
	query := "SELECT " + habitColumns + " FROM habits WHERE 1=1"
	var args []any
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
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
		"SELECT "+habitColumns+" FROM habits WHERE id = ? AND deleted_at IS NULL", id)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, storage.ErrNotFound)
	}
	return h, err
}

func (s *Store) CreateHabit(ctx context.Context, habit models.Habit) error {
	daysOfWeek, daysOfMonth, history, err := habitArgs(habit)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		habit.ID, habit.UserID, habit.Title, habit.Description, habit.Category, string(habit.Frequency),
		daysOfWeek, daysOfMonth, storage.FormatTimestamp(habit.CreatedAt), storage.NullTimestamp(habit.DeletedAt),
		habit.Streak, habit.LongestStreak, storage.NullTimestamp(habit.LastCompletedAt), history)
	if isUniqueViolation(err) {
		return fmt.Errorf("habit %s: %w", habit.ID, storage.ErrDuplicate)
	}
	return err
}

func (s *Store) UpdateHabit(ctx context.Context, habit models.Habit) error {
	daysOfWeek, daysOfMonth, history, err := habitArgs(habit)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE habits SET
			title = ?, description = ?, category = ?, frequency = ?,
			days_of_week = ?, days_of_month = ?,
			streak = ?, longest_streak = ?, last_completed_at = ?, completion_history = ?
		WHERE id = ? AND deleted_at IS NULL`,
		habit.Title, habit.Description, habit.Category, string(habit.Frequency),
		daysOfWeek, daysOfMonth,
		habit.Streak, habit.LongestStreak, storage.NullTimestamp(habit.LastCompletedAt), history,
		habit.ID)
	if err != nil {
		return err
	}
	return expectRow(result, "habit "+habit.ID)
}

func (s *Store) DeleteHabit(ctx context.Context, id string, at time.Time) error {
	now := storage.FormatTimestamp(at)
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE habits SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", now, id)
		if err != nil {
			return err
		}
		if err := expectRow(result, "habit "+id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE completions SET deleted_at = ? WHERE habit_id = ? AND deleted_at IS NULL", now, id)
		return err
	})
}

func (s *Store) RestoreHabit(ctx context.Context, id string) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE habits SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL", id)
		if err != nil {
			return err
		}
		if err := expectRow(result, "deleted habit "+id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE completions SET deleted_at = NULL WHERE habit_id = ? AND deleted_at IS NOT NULL", id)
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
