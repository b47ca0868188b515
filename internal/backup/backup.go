// Package backup snapshots the SQLite database into <config-dir>/backups
// and restores those snapshots.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/logger"
)

const (
	// DefaultKeep is how many snapshots survive rotation.
	DefaultKeep = 14
	DirName     = "backups"
	filePrefix  = constants.AppName + "-"
	fileSuffix  = ".db"
	stampLayout = "20060102-150405"
)

// ErrNoDatabase is returned when there is no SQLite file to snapshot.
var ErrNoDatabase = errors.New("database does not exist")

// Snapshot describes one backup file.
type Snapshot struct {
	Path    string
	TakenAt time.Time
	Size    int64

	seq int // collision counter within one second
}

// Name is the file name of the snapshot.
func (s Snapshot) Name() string { return filepath.Base(s.Path) }

type Manager struct {
	dbPath string
	dir    string
	keep   int
	now    func() time.Time
}

// NewManager manages snapshots of the database at dbPath, stored next to it.
func NewManager(dbPath string) *Manager {
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		keep:   DefaultKeep,
		now:    time.Now,
	}
}

func (m *Manager) Dir() string { return m.dir }

// Create snapshots the database with VACUUM INTO and rotates old snapshots.
func (m *Manager) Create(ctx context.Context) (Snapshot, error) {
	snap, err := m.create(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate backups", "dir", m.dir, "error", err)
	}
	return snap, nil
}

func (m *Manager) create(ctx context.Context) (Snapshot, error) {
	if _, err := os.Stat(m.dbPath); errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoDatabase, m.dbPath)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	taken := m.now()
	dest := m.freePath(taken)

	src, err := sql.Open("sqlite", m.dbPath+"?mode=ro")
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer src.Close()

	if err := pingDB(ctx, src); err != nil {
		return Snapshot{}, fmt.Errorf("database appears to be corrupted: %w", err)
	}
	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		logger.Debug("VACUUM INTO failed, copying file", "error", err)
		if err := copyFile(m.dbPath, dest); err != nil {
			return Snapshot{}, fmt.Errorf("failed to copy database: %w", err)
		}
	}

	info, err := os.Stat(dest)
	if err != nil {
		return Snapshot{}, err
	}
	logger.Info("Created backup", "path", dest)
	return Snapshot{Path: dest, TakenAt: taken.Truncate(time.Second), Size: info.Size()}, nil
}

// freePath picks an unused file name for a snapshot taken at t.
func (m *Manager) freePath(t time.Time) string {
	base := filePrefix + t.Format(stampLayout)
	path := filepath.Join(m.dir, base+fileSuffix)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s-%d%s", base, n, fileSuffix))
	}
}

// List returns snapshots newest first. A missing directory is an empty list.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snaps []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		taken, seq, ok := parseName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{
			Path:    filepath.Join(m.dir, e.Name()),
			TakenAt: taken,
			Size:    info.Size(),
			seq:     seq,
		})
	}
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].TakenAt.Equal(snaps[j].TakenAt) {
			return snaps[i].TakenAt.After(snaps[j].TakenAt)
		}
		return snaps[i].seq > snaps[j].seq
	})
	return snaps, nil
}

// parseName reads the timestamp and collision counter out of a snapshot name.
func parseName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, 0, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	seq := 0
	if len(stamp) > len(stampLayout) {
		n, err := strconv.Atoi(strings.TrimPrefix(stamp[len(stampLayout):], "-"))
		if err != nil {
			return time.Time{}, 0, false
		}
		seq = n
		stamp = stamp[:len(stampLayout)]
	}
	t, err := time.ParseInLocation(stampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	return t, seq, true
}

// Resolve finds a snapshot by file name or path.
func (m *Manager) Resolve(ref string) (Snapshot, error) {
	snaps, err := m.List()
	if err != nil {
		return Snapshot{}, err
	}
	for _, s := range snaps {
		if s.Path == ref || s.Name() == ref || s.Name() == ref+fileSuffix {
			return s, nil
		}
	}
	return Snapshot{}, fmt.Errorf("backup %q not found in %s", ref, m.dir)
}

func (m *Manager) rotate() error {
	snaps, err := m.List()
	if err != nil {
		return err
	}
	for _, s := range snaps[min(m.keep, len(snaps)):] {
		if err := os.Remove(s.Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", s.Name(), err)
		}
		logger.Debug("Removed old backup", "path", s.Path)
	}
	return nil
}

// Restore replaces the database with the snapshot at path. The current
// database, if any, is snapshotted first and returned as safety; it is
// exempt from rotation so the restore can always be undone.
// The store must be closed before calling Restore.
func (m *Manager) Restore(ctx context.Context, path string) (safety *Snapshot, err error) {
	if err := verify(ctx, path); err != nil {
		return nil, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	if _, err := os.Stat(m.dbPath); err == nil {
		snap, err := m.create(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to back up current database before restore: %w", err)
		}
		safety = &snap
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return safety, fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		_ = os.Remove(tmp)
		return safety, fmt.Errorf("failed to restore database: %w", err)
	}
	logger.Info("Restored database from backup", "backup", path, "database", m.dbPath)
	return safety, nil
}

func verify(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	return pingDB(ctx, db)
}

func pingDB(ctx context.Context, db *sql.DB) error {
	var n int
	return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
