package postgres

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
	var deletedAt sql.NullTime

	err := row.Scan(&e.ID, &e.UserID, &e.HabitID, &e.Date, &e.CompletedAt, &e.Category, &e.IsCompleted, &deletedAt)
	if err != nil {
		return models.CompletionEntry{}, err
	}
	e.DeletedAt = timePtr(deletedAt)
	return e, nil
}

func (s *Store) ListCompletions(ctx context.Context, filter storage.CompletionFilter) ([]models.CompletionEntry, error) {
	query := "SELECT " + completionColumns + " FROM completions WHERE 1=1"
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}

	if filter.UserID != "" {
		add(" AND user_id = $%d", filter.UserID)
	}
	if filter.HabitID != "" {
		add(" AND habit_id = $%d", filter.HabitID)
	}
	if !filter.From.IsZero() {
		add(" AND day >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add(" AND day <= $%d", filter.To)
	}
	if filter.Completed != nil {
		add(" AND is_completed = $%d", *filter.Completed)
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY day DESC, completed_at DESC"
	if filter.Limit > 0 {
		add(" LIMIT $%d", filter.Limit)
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

// CreateCompletion relies on UNIQUE(habit_id, day): a conflicting insert
// affects no rows and is reported as ErrDuplicate.
func (s *Store) CreateCompletion(ctx context.Context, entry models.CompletionEntry) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO completions (`+completionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (habit_id, day) DO NOTHING`,
		entry.ID, entry.UserID, entry.HabitID, entry.Date, entry.CompletedAt,
		entry.Category, entry.IsCompleted, nullTime(entry.DeletedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("habit %s on %s: %w", entry.HabitID, entry.Date, storage.ErrDuplicate)
	}
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("habit %s on %s: %w", entry.HabitID, entry.Date, storage.ErrDuplicate)
	}
	return nil
}

func (s *Store) CountDuplicateCompletions(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT habit_id, day FROM completions
			WHERE user_id = $1 AND deleted_at IS NULL
			GROUP BY habit_id, day
			HAVING COUNT(*) > 1
		) AS dups`, userID).Scan(&count)
	return count, err
}
