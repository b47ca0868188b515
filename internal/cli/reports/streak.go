package reports

import (
	"fmt"

	"github.com/julianstephens/daystreak/internal/cli"
)

type StreakCmd struct{}

func (c *StreakCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	record := ctx.Service.FetchStreaks(ctx.Ctx, userID)
	today := ctx.Service.GetTodayStats(ctx.Ctx, userID)

	last := "never"
	if record.LastStreakDate != nil {
		last = record.LastStreakDate.AddDays(-1).String()
	}
	body := fmt.Sprintf("Current streak:  %d day(s)\nLongest streak:  %d day(s)\nLast full day:   %s\nHabits counted:  %d\nToday:           %d/%d done",
		record.CurrentStreak, record.LongestStreak, last, record.TotalHabitsCompleted, today.Completed, today.Total)
	ctx.Println(cli.TitleStyle.Render("Global streak"))
	ctx.Println(cli.BoxStyle.Render(body))
	return nil
}
