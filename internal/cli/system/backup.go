package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/daystreak/internal/backup"
	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the SQLite database." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List available snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the database with a snapshot."`
}

var errNotSQLite = errors.New("backups are only supported for SQLite databases")

// sqliteBackups returns a manager for the store's file, or errNotSQLite.
func sqliteBackups(ctx *cli.Context) (*backup.Manager, error) {
	path := ctx.Store.GetConfigPath()
	if path == "" || path == "postgresql" || postgres.IsConnString(path) {
		return nil, errNotSQLite
	}
	return backup.NewManager(path), nil
}

// snapshotBefore takes a safety snapshot ahead of a destructive operation.
// Non-SQLite stores and missing databases are skipped silently.
func snapshotBefore(ctx *cli.Context, what string) error {
	mgr, err := sqliteBackups(ctx)
	if err != nil {
		return nil
	}
	snap, err := mgr.Create(ctx.Ctx)
	if errors.Is(err, backup.ErrNoDatabase) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to back up database before %s: %w", what, err)
	}
	ctx.Printf("Backed up database to %s\n", snap.Name())
	return nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := sqliteBackups(ctx)
	if err != nil {
		return err
	}
	snap, err := mgr.Create(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.Printf("✓ Backup created: %s\n", snap.Name())
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := sqliteBackups(ctx)
	if err != nil {
		return err
	}
	snaps, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(snaps) == 0 {
		ctx.Println("No backups found.")
		ctx.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(snaps), backup.DefaultKeep)
	for _, s := range snaps {
		ctx.Printf("  %s  %s  (%.1f KB)\n", s.TakenAt.Format("2006-01-02 15:04:05"), s.Name(), float64(s.Size)/1024.0)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	Backup string `arg:"" help:"Snapshot file name or path (see 'daystreak backup list')."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := sqliteBackups(ctx)
	if err != nil {
		return err
	}
	snap, err := mgr.Resolve(c.Backup)
	if err != nil {
		return err
	}

	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	safety, err := mgr.Restore(ctx.Ctx, snap.Path)
	if safety != nil {
		ctx.Printf("Backed up current database to %s\n", safety.Name())
	}
	if err != nil {
		return err
	}
	if err := ctx.Store.Load(ctx.Ctx); err != nil {
		return fmt.Errorf("restored database failed to load: %w", err)
	}
	ctx.Printf("✓ Restored database from %s\n", snap.Name())
	return nil
}
