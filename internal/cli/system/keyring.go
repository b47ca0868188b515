package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store the PostgreSQL connection string in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show the stored connection string (password masked)."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
	Status KeyringStatusCmd `cmd:"" help:"Check whether the OS keyring is available."`
}

type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring"`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if !postgres.IsConnString(cmd.ConnectionString) && !strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so embedded credentials are allowed here.
		ctx.Println("⚠️  Warning: Connection string contains embedded credentials.")
		ctx.Println("   It will be stored as-is in the encrypted OS keyring.")
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}
	ctx.Println("✓ Connection string stored successfully in OS keyring")
	ctx.Println("  daystreak will use it when no --db or 'database' is configured")
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'daystreak keyring set' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}
	ctx.Println("Connection string retrieved from keyring:")
	ctx.Println(keyring.MaskPassword(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	ctx.Println("✓ Connection string deleted from OS keyring")
	return nil
}

type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}
	ctx.Println("✓ OS keyring is available")
	if _, err := keyring.GetConnectionString(); err == nil {
		ctx.Println("✓ Connection string is stored in keyring")
	} else if errors.Is(err, keyring.ErrNotFound) {
		ctx.Println("ℹ No connection string stored in keyring")
	}
	return nil
}
