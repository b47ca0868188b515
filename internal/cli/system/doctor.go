package system

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/validation"
)

type DoctorCmd struct{}

// errSkipped marks a check that could not run.
type errSkipped struct{ reason string }

func (e errSkipped) Error() string { return e.reason }

type check struct {
	name       string
	needsStore bool
	run        func(ctx *cli.Context) error
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	checks := []check{
		{"Schema version", true, checkSchemaVersion},
		{"Migrations complete", true, checkMigrationsComplete},
		{"Duplicate completions", true, checkDuplicateCompletions},
		{"Habit validation", true, checkHabitValidation},
		{"Streak cache", true, checkStreakCache},
		{"Clock/timezone", false, checkClockTimezone},
	}

	hasError := false
	dbReachable := true
	if err := ctx.Store.Load(ctx.Ctx); err != nil {
		ctx.Printf("❌ Database reachable: FAIL\n")
		ctx.Printf("   Error: %v\n", err)
		hasError = true
		dbReachable = false
	} else {
		ctx.Printf("✓ Database reachable: OK\n")
	}

	for _, c := range checks {
		if c.needsStore && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		var skipped errSkipped
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", c.name)
		case errors.As(err, &skipped):
			ctx.Printf("⊘ %s: SKIPPED (%s)\n", c.name, skipped.reason)
		default:
			ctx.Printf("❌ %s: FAIL\n", c.name)
			ctx.Printf("   Error: %s\n", strings.ReplaceAll(err.Error(), "\n", "\n   "))
			hasError = true
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	status, err := ctx.Store.SchemaStatus(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema status: %w", err)
	}
	if status.Current > status.Latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", status.Current, status.Latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	status, err := ctx.Store.SchemaStatus(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema status: %w", err)
	}
	if len(status.Pending) > 0 {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run 'daystreak migrate')", status.Current, status.Latest)
	}
	return nil
}

func checkDuplicateCompletions(ctx *cli.Context) error {
	userID := ""
	if ctx.Session != nil {
		userID = ctx.Session.UserID()
	}
	n, err := ctx.Store.CountDuplicateCompletions(ctx.Ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check duplicate completions: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("found %d habit+day combinations with duplicate completions", n)
	}
	return nil
}

func checkHabitValidation(ctx *cli.Context) error {
	userID := ""
	if ctx.Session != nil {
		userID = ctx.Session.UserID()
	}
	habits, err := ctx.Store.ListHabits(ctx.Ctx, storage.HabitFilter{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to list habits: %w", err)
	}
	// Titles are unique per user, so each user's habits are checked alone.
	byUser := make(map[string][]models.Habit)
	var users []string
	for _, h := range habits {
		if _, ok := byUser[h.UserID]; !ok {
			users = append(users, h.UserID)
		}
		byUser[h.UserID] = append(byUser[h.UserID], h)
	}

	v := validation.New()
	var reports []string
	for _, u := range users {
		result := v.ValidateHabits(byUser[u])
		if result.HasConflicts() {
			reports = append(reports, strings.TrimSpace(result.FormatReport()))
		}
	}
	if len(reports) > 0 {
		return errors.New(strings.Join(reports, "\n"))
	}
	return nil
}

func checkStreakCache(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return errSkipped{reason: "no user configured"}
	}
	stale, err := ctx.Service.HabitsNeedingRepair(ctx.Ctx, userID)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		titles := make([]string, 0, len(stale))
		for _, h := range stale {
			titles = append(titles, h.Title)
		}
		return fmt.Errorf("%d habit(s) disagree with the ledger: %s (run 'daystreak habit repair')", len(stale), strings.Join(titles, ", "))
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if ctx.Config != nil {
		if _, err := ctx.Config.Location(); err != nil {
			return err
		}
	}
	return nil
}
