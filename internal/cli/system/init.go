package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting the existing SQLite database before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	dbPath := ctx.Store.GetConfigPath()
	if c.Force {
		if postgres.IsConnString(dbPath) || dbPath == "postgresql" {
			return fmt.Errorf("--force only applies to SQLite databases")
		}
		if _, err := os.Stat(dbPath); err == nil {
			if err := snapshotBefore(ctx, "reset"); err != nil {
				return err
			}
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			ctx.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(ctx.Ctx); err != nil {
		return err
	}
	ctx.Printf("Initialized daystreak storage at: %s\n", dbPath)
	if ctx.Config != nil {
		ctx.Printf("Configuration: %s\n", ctx.Config.Path())
		if ctx.Config.User == "" {
			ctx.Println("No user configured yet. Set 'user' in config.yaml or pass --user.")
		}
	}
	return nil
}
