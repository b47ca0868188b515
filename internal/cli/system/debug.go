package system

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/storage"
)

type DebugCmd struct {
	DBPath          DebugDBPathCmd          `cmd:"" name:"db-path" help:"Show database path."`
	DumpHabit       DebugDumpHabitCmd       `cmd:"" help:"Dump habit data as JSON."`
	DumpStreak      DebugDumpStreakCmd      `cmd:"" help:"Dump the stored global streak record as JSON."`
	DumpCompletions DebugDumpCompletionsCmd `cmd:"" help:"Dump a habit's ledger entries as JSON."`
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return printJSON(ctx, map[string]string{"path": ctx.Store.GetConfigPath()})
}

type DebugDumpHabitCmd struct {
	Ref string `arg:"" help:"Habit id, id prefix or title."`
}

func (cmd *DebugDumpHabitCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	habit, err := ctx.Service.ResolveHabit(ctx.Ctx, userID, cmd.Ref, true)
	if err != nil {
		return err
	}
	return printJSON(ctx, habit)
}

// DebugDumpStreakCmd prints the record as stored, without evaluating
// missed days first.
type DebugDumpStreakCmd struct{}

func (cmd *DebugDumpStreakCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	record, err := ctx.Store.GetStreakRecord(ctx.Ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get streak record: %w", err)
	}
	return printJSON(ctx, record)
}

type DebugDumpCompletionsCmd struct {
	Ref            string `arg:"" help:"Habit id, id prefix or title."`
	IncludeDeleted bool   `help:"Include soft-deleted entries."`
}

func (cmd *DebugDumpCompletionsCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	habit, err := ctx.Service.ResolveHabit(ctx.Ctx, userID, cmd.Ref, true)
	if err != nil {
		return err
	}
	entries, err := ctx.Store.ListCompletions(ctx.Ctx, storage.CompletionFilter{
		UserID:         userID,
		HabitID:        habit.ID,
		IncludeDeleted: cmd.IncludeDeleted,
	})
	if err != nil {
		return fmt.Errorf("failed to list completions: %w", err)
	}
	return printJSON(ctx, entries)
}

func printJSON(ctx *cli.Context, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	ctx.Println(string(jsonBytes))
	return nil
}
