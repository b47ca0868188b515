package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/cli/habits"
	"github.com/julianstephens/daystreak/internal/cli/reports"
	"github.com/julianstephens/daystreak/internal/cli/system"
	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
	"github.com/julianstephens/daystreak/internal/tracker"
)

var CLI struct {
	Version   kong.VersionFlag
	ConfigDir string `help:"Directory holding config.yaml, logs and the default database." type:"string"`
	DB        string `name:"db" help:"SQLite file path or PostgreSQL connection string. PostgreSQL passwords must NOT be embedded; use .pgpass or the OS keyring." type:"string"`
	User      string `help:"User id that owns habits and completions." type:"string"`
	Timezone  string `help:"IANA timezone that decides which calendar day a completion belongs to." type:"string"`
	Debug     bool   `help:"Enable debug logging to stderr."`

	Init     system.InitCmd    `cmd:"" help:"Initialize daystreak storage."`
	Migrate  system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor   system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Keyring  system.KeyringCmd `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Backup   system.BackupCmd  `cmd:"" help:"Snapshot and restore the SQLite database."`
	DebugCmd system.DebugCmd   `cmd:"" name:"debug" help:"Inspect raw stored data."`
	Habit    habits.HabitCmd   `cmd:"" help:"Manage habits and habit tracking."`
	Streak   reports.StreakCmd `cmd:"" help:"Show the global streak."`
	Stats    reports.StatsCmd  `cmd:"" help:"Show completion analytics."`
}

// commands that manage their own store lifecycle
var skipLoad = map[string]bool{
	"init":    true,
	"keyring": true,
	"doctor":  true,
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker with per-habit and global streaks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	configDir, err := config.ResolveConfigDir(CLI.ConfigDir)
	if err != nil {
		apperrors.Fatal(err)
	}
	cfg, err := config.Load(configDir, config.Overrides{
		Database: CLI.DB,
		User:     CLI.User,
		Timezone: CLI.Timezone,
		Debug:    CLI.Debug,
	})
	if err != nil {
		apperrors.Fatal(err)
	}

	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.Dir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	defer func() { _ = logger.Close() }()

	store, err := openStore(cfg)
	if err != nil {
		apperrors.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	loc, err := cfg.Location()
	if err != nil {
		apperrors.Fatal(err)
	}

	ctx := context.Background()
	appCtx := cli.NewContext(ctx, cfg, store, tracker.Options{Location: loc})

	command := strings.Fields(kctx.Command())
	if len(command) > 0 && !skipLoad[command[0]] {
		if err := store.Load(ctx); err != nil {
			logger.Error("failed to load store", "error", err)
			fmt.Fprintln(os.Stderr, apperrors.Format(err))
			_ = store.Close()
			os.Exit(1)
		}
	}

	logger.Debug("running command", "command", kctx.Command(), "user", cfg.User)
	if err := kctx.Run(appCtx); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		fmt.Fprintln(os.Stderr, apperrors.Format(err))
		_ = store.Close()
		_ = logger.Close()
		os.Exit(1)
	}
}

// openStore picks a backend from the configured database, falling back to a
// connection string in the OS keyring and then to the default SQLite file.
func openStore(cfg *config.Config) (storage.Provider, error) {
	target := cfg.Database
	fromKeyring := false
	if target == "" {
		connStr, err := keyring.GetConnectionString()
		switch {
		case err == nil:
			target = connStr
			fromKeyring = true
		case errors.Is(err, keyring.ErrNotFound), errors.Is(err, keyring.ErrKeyringUnavailable):
			logger.Debug("no keyring connection string", "error", err)
		default:
			return nil, err
		}
	}
	if target == "" {
		target = config.DefaultDatabasePath(cfg.Dir)
	}

	if postgres.IsConnString(target) || strings.Contains(target, "host=") {
		if _, err := postgres.ValidateConnString(target); err != nil {
			// The keyring is encrypted storage, so credentials there are allowed.
			if !(fromKeyring && errors.Is(err, postgres.ErrEmbeddedCredentials)) {
				if errors.Is(err, postgres.ErrEmbeddedCredentials) {
					return nil, fmt.Errorf("%w; store it with 'daystreak keyring set' or use .pgpass", err)
				}
				return nil, err
			}
		}
		logger.Debug("using postgres store", "keyring", fromKeyring)
		return postgres.New(target), nil
	}

	logger.Debug("using sqlite store", "path", target)
	return sqlite.NewStore(target), nil
}
