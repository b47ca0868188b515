package reports

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/analytics"
	"github.com/julianstephens/daystreak/internal/cli"
)

const barWidth = 20

type StatsCmd struct {
	JSON bool `help:"Print the summary as JSON."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	s := ctx.Service.Analytics(ctx.Ctx, userID)

	if c.JSON {
		out, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		ctx.Println(string(out))
		return nil
	}

	ctx.Println(cli.TitleStyle.Render(fmt.Sprintf("Stats as of %s", s.Date)))
	ctx.Println()
	ctx.Printf("Total completions:  %d\n", s.TotalCompletions)
	ctx.Printf("Last 7 days:        %d\n", s.Last7Days)
	ctx.Printf("Last 30 days:       %d\n", s.Last30Days)
	ctx.Printf("7-day completion:   %.1f%%\n", s.CompletionRate)
	ctx.Printf("Global streak:      %d (best %d)\n", s.CurrentStreak, s.LongestStreak)
	if s.MostFrequentWeekday != nil {
		ctx.Printf("Best weekday:       %s\n", s.MostFrequentWeekday.String())
	}
	if s.MostProductiveHour != nil {
		ctx.Printf("Most productive:    %02d:00\n", *s.MostProductiveHour)
	}

	if len(s.Categories) > 0 {
		ctx.Println()
		ctx.Println(cli.TitleStyle.Render("Categories"))
		for _, share := range s.Categories {
			ctx.Printf("%s %s %5.1f%% (%d)\n", cli.Pad(cli.Truncate(share.Category, 16), 16), bar(share.Percentage), share.Percentage, share.Count)
		}
	}

	ctx.Println()
	ctx.Println(cli.TitleStyle.Render("Rhythm"))
	for _, day := range s.Rhythm {
		ctx.Printf("%s %s  %d/%d\n", day.Date.Weekday().String()[:3], rhythmBar(day), day.Completed, day.Due)
	}

	ctx.Println()
	ctx.Println(cli.BoxStyle.Render(fmt.Sprintf("%s: %s", strings.ToUpper(string(s.Tier)), s.Message)))
	return nil
}

func bar(percent float64) string {
	n := int(percent / 100 * barWidth)
	if n < 0 {
		n = 0
	}
	if n > barWidth {
		n = barWidth
	}
	return strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
}

func rhythmBar(day analytics.DayStat) string {
	if day.Due == 0 {
		return cli.MutedStyle.Render(strings.Repeat("·", barWidth))
	}
	return bar(float64(day.Completed) / float64(day.Due) * 100)
}
