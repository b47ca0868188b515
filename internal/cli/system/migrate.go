package system

import (
	"fmt"

	"github.com/julianstephens/daystreak/internal/cli"
)

type MigrateCmd struct {
	Status bool `help:"Only report the schema version and pending migrations."`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	status, err := ctx.Store.SchemaStatus(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema status: %w", err)
	}

	if c.Status {
		ctx.Printf("Schema version: %d (latest %d)\n", status.Current, status.Latest)
		for _, m := range status.Pending {
			ctx.Printf("  pending: %03d %s\n", m.Version, m.Name)
		}
		return nil
	}

	if len(status.Pending) > 0 {
		if err := snapshotBefore(ctx, "migrating"); err != nil {
			return err
		}
	}

	count, err := ctx.Store.Migrate(ctx.Ctx, func(msg string) {
		ctx.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		ctx.Println("No migrations to apply. Database is up to date.")
	} else {
		ctx.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
