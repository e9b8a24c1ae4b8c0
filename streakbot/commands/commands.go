package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/ellavondegurechaff/streakbot/streakbot"
	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/services"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

var Commands = []discord.ApplicationCommandCreate{
	Leaderboard,
	ActiveStreaks,
	TimeLeft,
}

var Leaderboard = discord.SlashCommandCreate{
	Name:        "leaderboard",
	Description: "Show the best streaks of all time in this server",
}

var ActiveStreaks = discord.SlashCommandCreate{
	Name:        "activestreaks",
	Description: "Show every streak in this server that is still alive",
}

var TimeLeft = discord.SlashCommandCreate{
	Name:        "timeleft",
	Description: "Show how long is left until the streak cut-off time",
}

// leaderboardSize caps how many all-time streaks the paginated leaderboard holds.
const leaderboardSize = 5 * config.LeaderboardPageSize

func LeaderboardHandler(b *streakbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		guildID := e.GuildID()
		if guildID == nil {
			return guildOnlyResponse(e)
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		records, err := b.Aggregator.TopAllTimeStreaks(ctx, guildID.String(), leaderboardSize)
		if err != nil {
			return err
		}
		return recordPages(b, e, "👑 All-time best streaks", records, LeaderboardPage)
	}
}

func ActiveStreaksHandler(b *streakbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		guildID := e.GuildID()
		if guildID == nil {
			return guildOnlyResponse(e)
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		records, err := b.Aggregator.ActiveStreaksForGuild(ctx, guildID.String(), time.Now())
		if err != nil {
			return err
		}
		return recordPages(b, e, "🔥 Active streaks", records, ActivePage)
	}
}

type pageRenderer func(records []*streaks.Record, page, perPage int, names func(string) string) string

func recordPages(b *streakbot.Bot, e *handler.CommandEvent, title string, records []*streaks.Record, render pageRenderer) error {
	if len(records) == 0 {
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent("no one has a streak in this server yet, why not be the first?").
			Build())
	}

	totalPages := (len(records) + config.LeaderboardPageSize - 1) / config.LeaderboardPageSize

	return b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			ctx, cancel := context.WithTimeout(context.Background(), config.PlatformCallTimeout)
			defer cancel()

			names := func(userID string) string {
				name, err := b.Platform.FetchUsername(ctx, userID)
				if err != nil {
					return "unknown user"
				}
				return name
			}

			embed.
				SetTitle(title).
				SetDescription(render(records, page, config.LeaderboardPageSize, names)).
				SetColor(config.StreakColor).
				SetFooter(fmt.Sprintf("Page %d/%d • Total Streaks: %d", page+1, totalPages, len(records)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func guildOnlyResponse(e *handler.CommandEvent) error {
	return e.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(guildOnly).
		SetEphemeral(true).
		Build())
}

// LeaderboardPage renders one page of records ranked by best streak.
func LeaderboardPage(records []*streaks.Record, page, perPage int, names func(string) string) string {
	return renderPage(records, page, perPage, func(rank int, rec *streaks.Record) string {
		return fmt.Sprintf("`%2d.` **%s** for *%s* with %s", rank, names(rec.UserID), rec.Topic, services.Days(rec.BestStreak))
	})
}

// ActivePage renders one page of alive streaks by current level.
func ActivePage(records []*streaks.Record, page, perPage int, names func(string) string) string {
	return renderPage(records, page, perPage, func(rank int, rec *streaks.Record) string {
		return fmt.Sprintf("`%2d.` **%s** - *%s* %s", rank, names(rec.UserID), rec.Topic, services.Days(rec.StreakLevel))
	})
}

func renderPage(records []*streaks.Record, page, perPage int, line func(rank int, rec *streaks.Record) string) string {
	start := page * perPage
	if start >= len(records) || start < 0 {
		return ""
	}
	end := min(start+perPage, len(records))

	var b strings.Builder
	for i, rec := range records[start:end] {
		b.WriteString(line(start+i+1, rec))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func TimeLeftHandler(b *streakbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		hours := b.Engine.HoursUntilNextDay(time.Now())
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			AddEmbeds(discord.NewEmbedBuilder().
				SetDescription(TimeLeftMessage(hours)).
				SetColor(config.StreakColor).
				Build()).
			Build())
	}
}
