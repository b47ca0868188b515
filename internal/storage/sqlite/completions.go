package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

const completionColumns = "id, user_id, habit_id, day, completed_at, category, is_completed, deleted_at"

func scanCompletion(row rowScanner) (models.CompletionEntry, error) {
	var e models.CompletionEntry
	var completedAt string
	var deletedAt sql.NullString

	err := row.Scan(&e.ID, &e.UserID, &e.HabitID, &e.Date, &completedAt, &e.Category, &e.IsCompleted, &deletedAt)
	if err != nil {
		return models.CompletionEntry{}, err
	}
	if e.CompletedAt, err = storage.ParseTimestamp(completedAt); err != nil {
		return models.CompletionEntry{}, fmt.Errorf("failed to parse completed_at for entry %s: %w", e.ID, err)
	}
	if e.DeletedAt, err = storage.ParseNullTimestamp(deletedAt, "deleted_at"); err != nil {
		return models.CompletionEntry{}, err
	}
	return e, nil
}

func (s *Store) ListCompletions(ctx context.Context, filter storage.CompletionFilter) ([]models.CompletionEntry, error) {
	query := "SELECT " + completionColumns + " FROM completions WHERE 1=1"
	var args []any
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.HabitID != "" {
		query += " AND habit_id = ?"
		args = append(args, filter.HabitID)
	}
	if !filter.From.IsZero() {
		query += " AND day >= ?"
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND day <= ?"
		args = append(args, filter.To)
	}
	if filter.Completed != nil {
		query += " AND is_completed = ?"
		args = append(args, *filter.Completed)
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY day DESC, completed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.CompletionEntry{}
	for rows.Next() {
		e, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateCompletion checks for an existing (habit, day) row and inserts in
// one transaction; the UNIQUE constraint backs up the check.
func (s *Store) CreateCompletion(ctx context.Context, entry models.CompletionEntry) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM completions WHERE habit_id = ? AND day = ?",
			entry.HabitID, entry.Date).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("habit %s on %s: %w", entry.HabitID, entry.Date, storage.ErrDuplicate)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO completions (`+completionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.UserID, entry.HabitID, entry.Date, storage.FormatTimestamp(entry.CompletedAt),
			entry.Category, entry.IsCompleted, storage.NullTimestamp(entry.DeletedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("habit %s on %s: %w", entry.HabitID, entry.Date, storage.ErrDuplicate)
		}
		return err
	})
}

func (s *Store) CountDuplicateCompletions(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT habit_id, day FROM completions
			WHERE user_id = ? AND deleted_at IS NULL
			GROUP BY habit_id, day
			HAVING COUNT(*) > 1
		)`, userID).Scan(&count)
	return count, err
}
