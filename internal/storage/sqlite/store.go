package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/migration"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/migrations"
)

var _ storage.Provider = (*Store)(nil)

type Store struct {
	path string
	db   *sql.DB
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
	}
}

func (s *Store) open() error {
	// busy_timeout lets a second writer wait for the lock instead of failing
	dsn := s.path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes transactions.
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

func (s *Store) Init(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	if _, err := s.Migrate(ctx, func(msg string) {
		logger.Info(msg)
	}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'daystreak init' first")
	}

	if err := s.open(); err != nil {
		return err
	}

	runner, err := s.runner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) runner() (*migration.Runner, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database is not open")
	}
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.DriverSQLite), nil
}

// Migrate applies pending embedded migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context, logFn func(string)) (int, error) {
	runner, err := s.runner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(ctx, logFn)
}

func (s *Store) SchemaStatus(ctx context.Context) (migration.Status, error) {
	runner, err := s.runner()
	if err != nil {
		return migration.Status{}, err
	}
	return runner.Status(ctx)
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying database connection.
// Returns nil if the database has not been initialized or loaded.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
