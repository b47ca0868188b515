package habits

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/schedule"
	"github.com/julianstephens/daystreak/internal/tracker"
)

type HabitCmd struct {
	Add     HabitAddCmd     `cmd:"" help:"Add a new habit."`
	List    HabitListCmd    `cmd:"" help:"List habits."`
	Edit    HabitEditCmd    `cmd:"" help:"Edit a habit's title, description, category or schedule."`
	Delete  HabitDeleteCmd  `cmd:"" help:"Delete a habit (soft delete)."`
	Restore HabitRestoreCmd `cmd:"" help:"Restore a deleted habit."`
	Done    HabitDoneCmd    `cmd:"" help:"Mark a habit as done today."`
	Today   HabitTodayCmd   `cmd:"" help:"Show today's habit status."`
	Log     HabitLogCmd     `cmd:"" help:"Show habit log (ASCII history)."`
	Repair  HabitRepairCmd  `cmd:"" help:"Rebuild cached streaks from the completion ledger."`
}

// recurrenceFlags parses the --days / --month-days pair for a frequency.
func recurrenceFlags(frequency constants.Frequency, days, monthDays string) (tracker.HabitInput, error) {
	var input tracker.HabitInput
	input.Frequency = frequency
	switch frequency {
	case constants.FrequencyWeekly:
		if days == "" {
			return input, errors.New("weekly habits need --days (e.g. mon,wed,fri)")
		}
		wds, err := schedule.ParseWeekdays(days)
		if err != nil {
			return input, err
		}
		input.DaysOfWeek = wds
	case constants.FrequencyMonthly:
		if monthDays == "" {
			return input, errors.New("monthly habits need --month-days (e.g. 1,15)")
		}
		mds, err := schedule.ParseMonthDays(monthDays)
		if err != nil {
			return input, err
		}
		input.DaysOfMonth = mds
	}
	return input, nil
}

type HabitAddCmd struct {
	Title       string `arg:"" help:"Habit title."`
	Category    string `help:"Category (e.g. health, learning)." required:""`
	Description string `help:"Optional description."`
	Frequency   string `help:"How often the habit recurs." enum:"daily,weekly,monthly" default:"daily"`
	Days        string `help:"Weekdays for weekly habits (e.g. mon,wed,fri)."`
	MonthDays   string `help:"Days of the month for monthly habits (e.g. 1,15)."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	input, err := recurrenceFlags(constants.Frequency(c.Frequency), c.Days, c.MonthDays)
	if err != nil {
		return err
	}
	input.Title = c.Title
	input.Category = c.Category
	input.Description = c.Description

	habit, err := ctx.Session.Add(ctx.Ctx, input)
	if err != nil {
		return err
	}
	ctx.Printf("Added habit: %s (%s, %s) [%s]\n", habit.Title, habit.Category, schedule.FormatRecurrence(habit), cli.ShortID(habit.ID))
	return nil
}

type HabitListCmd struct {
	Deleted bool `help:"Include deleted habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	views, err := ctx.Service.ListHabits(ctx.Ctx, userID, c.Deleted)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	ctx.Printf("%-8s  %-24s  %-12s  %-24s  %s\n", "ID", "Title", "Category", "Schedule", "Streak")
	ctx.Println(strings.Repeat("-", 84))
	for _, v := range views {
		status := ""
		if v.DeletedAt != nil {
			status = " " + cli.MutedStyle.Render("[DELETED]")
		}
		ctx.Printf("%-8s  %s  %s  %s  %d (best %d)%s\n",
			cli.ShortID(v.ID),
			cli.Pad(cli.Truncate(v.Title, 24), 24),
			cli.Pad(cli.Truncate(v.Category, 12), 12),
			cli.Pad(cli.Truncate(schedule.FormatRecurrence(v.Habit), 24), 24),
			v.Streak, v.LongestStreak, status)
	}
	return nil
}

type HabitEditCmd struct {
	Habit            string `arg:"" help:"Habit title or id."`
	Title            string `help:"New title."`
	Description      string `help:"New description."`
	ClearDescription bool   `help:"Remove the description."`
	Category         string `help:"New category."`
	Frequency        string `help:"New frequency (daily, weekly or monthly)."`
	Days             string `help:"Weekdays for weekly habits (e.g. mon,wed,fri)."`
	MonthDays        string `help:"Days of the month for monthly habits (e.g. 1,15)."`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	habit, err := ctx.Service.ResolveHabit(ctx.Ctx, userID, c.Habit, false)
	if err != nil {
		return err
	}

	var patch tracker.HabitPatch
	changed := false
	if c.Title != "" {
		patch.Title = &c.Title
		changed = true
	}
	if c.ClearDescription {
		empty := ""
		patch.Description = &empty
		changed = true
	} else if c.Description != "" {
		patch.Description = &c.Description
		changed = true
	}
	if c.Category != "" {
		patch.Category = &c.Category
		changed = true
	}
	if c.Frequency != "" || c.Days != "" || c.MonthDays != "" {
		frequency := habit.Frequency
		if c.Frequency != "" {
			frequency = constants.Frequency(c.Frequency)
		}
		rec, err := recurrenceFlags(frequency, c.Days, c.MonthDays)
		if err != nil {
			return err
		}
		patch.Frequency = &frequency
		patch.DaysOfWeek = rec.DaysOfWeek
		patch.DaysOfMonth = rec.DaysOfMonth
		changed = true
	}
	if !changed {
		return errors.New("nothing to change (use --title, --description, --category, --frequency, --days or --month-days)")
	}

	updated, err := ctx.Session.Update(ctx.Ctx, habit.ID, patch)
	if err != nil {
		return err
	}
	ctx.Printf("Updated habit: %s (%s, %s)\n", updated.Title, updated.Category, schedule.FormatRecurrence(updated))
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit title or id."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	habit, err := ctx.Service.ResolveHabit(ctx.Ctx, userID, c.Habit, false)
	if err != nil {
		return err
	}
	if err := ctx.Session.Delete(ctx.Ctx, habit.ID); err != nil {
		return err
	}
	ctx.Printf("Deleted habit: %s\n", habit.Title)
	ctx.Println("(This is a soft delete. Use 'daystreak habit restore' to undo)")
	return nil
}

type HabitRestoreCmd struct {
	Habit string `arg:"" help:"Title or id of the deleted habit."`
}

func (c *HabitRestoreCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	views, err := ctx.Service.ListHabits(ctx.Ctx, userID, true)
	if err != nil {
		return err
	}
	var target *models.Habit
	for _, v := range views {
		if v.DeletedAt != nil && (v.ID == c.Habit || strings.EqualFold(v.Title, c.Habit) || (len(c.Habit) >= 4 && strings.HasPrefix(v.ID, c.Habit))) {
			h := v.Habit
			target = &h
			break
		}
	}
	if target == nil {
		return fmt.Errorf("deleted habit %q not found", c.Habit)
	}

	restored, err := ctx.Session.Restore(ctx.Ctx, target.ID)
	if err != nil {
		return err
	}
	ctx.Printf("Restored habit: %s\n", restored.Title)
	return nil
}

type HabitDoneCmd struct {
	Habit string `arg:"" help:"Habit title or id."`
}

func (c *HabitDoneCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	habit, err := ctx.Service.ResolveHabit(ctx.Ctx, userID, c.Habit, false)
	if err != nil {
		return err
	}

	result, err := ctx.Session.MarkComplete(ctx.Ctx, habit.ID)
	if err != nil {
		return err
	}
	if result.AlreadyCompleted {
		ctx.Printf("%s already completed today.\n", habit.Title)
		return nil
	}

	ctx.Printf("%s %s (streak %d, best %d)\n",
		cli.DoneStyle.Render("✓ Completed"), result.Habit.Title, result.Habit.Streak, result.Habit.LongestStreak)
	if !ctx.Service.IsDue(result.Habit, ctx.Service.Today()) {
		ctx.Println(cli.MutedStyle.Render("  (not scheduled today, recorded anyway)"))
	}

	stats := ctx.Service.GetTodayStats(ctx.Ctx, userID)
	if stats.Total > 0 && stats.Completed == stats.Total {
		ctx.Printf("All %d habits done today. Global streak: %d day(s)\n", stats.Total, result.Record.CurrentStreak)
	}
	return nil
}

type HabitTodayCmd struct{}

func (c *HabitTodayCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	if err := ctx.Session.Refresh(ctx.Ctx); err != nil {
		return err
	}
	views := ctx.Session.Habits()
	if len(views) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	stats := ctx.Service.GetTodayStats(ctx.Ctx, userID)
	ctx.Println(cli.TitleStyle.Render(fmt.Sprintf("Habits for %s", stats.Date)))
	ctx.Println()

	var notDue []models.HabitView
	for _, v := range views {
		if !v.IsDueToday {
			notDue = append(notDue, v)
			continue
		}
		if v.IsCompletedToday {
			ctx.Printf("%s %s\n", cli.DoneStyle.Render("[x]"), v.Title)
		} else {
			ctx.Printf("%s %s\n", cli.PendingStyle.Render("[ ]"), v.Title)
		}
	}
	if len(notDue) > 0 {
		ctx.Println()
		for _, v := range notDue {
			ctx.Println(cli.MutedStyle.Render(fmt.Sprintf("    %s (%s)", v.Title, schedule.FormatRecurrence(v.Habit))))
		}
	}

	ctx.Printf("\nCompleted: %d/%d\n", stats.Completed, stats.Total)
	return nil
}

type HabitLogCmd struct {
	Days  int    `help:"Number of days to show." default:"14"`
	Habit string `help:"Show log for specific habit only."`
}

const logNameWidth = 20

func (c *HabitLogCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	days := c.Days
	if days <= 0 {
		days = constants.DefaultLogDays
	}

	log, err := ctx.Service.Log(ctx.Ctx, userID, c.Habit, days)
	if err != nil {
		return err
	}
	if len(log.Rows) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	ctx.Printf("Habit log (last %d days):\n\n", days)
	var header strings.Builder
	header.WriteString(cli.Pad("Habit", logNameWidth))
	for _, d := range log.Days {
		fmt.Fprintf(&header, " %02d/%02d", int(d.Month), d.Day)
	}
	ctx.Println(header.String())
	ctx.Println(strings.Repeat("-", logNameWidth+6*len(log.Days)))

	for _, row := range log.Rows {
		var line strings.Builder
		line.WriteString(cli.Pad(cli.Truncate(row.Habit.Title, logNameWidth), logNameWidth))
		for _, m := range row.Marks {
			line.WriteString("  " + markSymbol(m) + "   ")
		}
		ctx.Println(strings.TrimRight(line.String(), " "))
	}
	ctx.Println()
	ctx.Println(cli.MutedStyle.Render("x done   . missed   - not scheduled"))
	return nil
}

func markSymbol(m tracker.DayMark) string {
	switch m {
	case tracker.MarkDone:
		return "x"
	case tracker.MarkMissed:
		return "."
	case tracker.MarkNotDue:
		return "-"
	default:
		return " "
	}
}

type HabitRepairCmd struct {
	Habit string `arg:"" optional:"" help:"Habit title or id (default: every habit that needs it)."`
}

func (c *HabitRepairCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}

	var targets []models.Habit
	if c.Habit != "" {
		h, err := ctx.Service.ResolveHabit(ctx.Ctx, userID, c.Habit, false)
		if err != nil {
			return err
		}
		targets = []models.Habit{h}
	} else {
		if targets, err = ctx.Service.HabitsNeedingRepair(ctx.Ctx, userID); err != nil {
			return err
		}
	}

	repaired := 0
	for _, h := range targets {
		updated, changed, err := ctx.Service.RepairHabit(ctx.Ctx, userID, h.ID)
		if err != nil {
			return err
		}
		if changed {
			repaired++
			ctx.Printf("Repaired %s: streak %d, best %d, %d completion(s)\n",
				updated.Title, updated.Streak, updated.LongestStreak, len(updated.CompletionHistory))
		}
	}
	if repaired == 0 {
		ctx.Println("All habits are consistent with the ledger.")
	}
	return nil
}
