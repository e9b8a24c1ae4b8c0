package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ellavondegurechaff/streakbot/streakbot/services"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

func (r *Router) streak(ctx context.Context, m Message, _ string) (Reply, error) {
	if !m.inGuild() || m.ChannelName == "" {
		return text("You can't start a streak here, it has to be in a channel!"), nil
	}

	rec, err := r.engine.RecordProgress(ctx, streaks.Progress{
		GuildID:     m.GuildID,
		UserID:      m.UserID,
		ChannelName: m.ChannelName,
		Text:        m.Content,
		At:          m.At,
	})
	if err != nil {
		return Reply{}, err
	}

	if err := r.engine.AssignActiveRole(ctx, m.GuildID, m.UserID); err != nil {
		slog.Warn("Failed to assign active streaker role",
			slog.String("type", "sys"),
			slog.String("guild_id", m.GuildID),
			slog.String("user_id", m.UserID),
			slog.Any("error", err))
	}

	return Reply{
		Text:     fmt.Sprintf("nice one! Your %s streak is now %s!", rec.Topic, services.Days(rec.StreakLevel)),
		Reaction: "🔥",
	}, nil
}

func (r *Router) myStreaks(ctx context.Context, m Message, _ string) (Reply, error) {
	list, err := r.engine.UserStreaks(ctx, m.UserID, m.At)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return text("You currently have no active streaks. Use !streak (with an optional #topic) in a channel to start one 🔥"), nil
	}

	var b strings.Builder
	if m.inGuild() {
		b.WriteString("here are your active streaks: \n\n")
	} else {
		b.WriteString("Here are your active streaks: \n\n")
	}
	for i, s := range list {
		posted := "but you haven't increased your streak yet today 😟"
		if s.PostedToday {
			posted = "and you've increased your streak today 👍"
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Your *%s* streak is currently %s %s", s.Topic, services.Days(s.StreakLevel), posted)
	}
	return text(b.String()), nil
}

func (r *Router) timeLeft(_ context.Context, m Message, _ string) (Reply, error) {
	return text(TimeLeftMessage(r.engine.HoursUntilNextDay(m.At))), nil
}

// TimeLeftMessage answers how long is left to continue a streak.
func TimeLeftMessage(hours int) string {
	if hours <= 1 {
		return "there is under an hour left to continue a streak ⏳"
	}
	return fmt.Sprintf("there are %d hours left to continue a streak ⏰", hours)
}

func (r *Router) help(context.Context, Message, string) (Reply, error) {
	return text(helpText), nil
}

const helpText = "here's a list of commands you can use: \n\n" +
	"**Streaks**\n" +
	"`!streak [#topic (optional)] [what you did]` - start or continue a streak for your chosen topic. You need to supply a small description of the work in your message for it to count\n\n" +
	"`!mystreaks` - show all your current streaks\n\n" +
	"`!showstreaks` - show all streaks for this channel\n\n" +
	"**Global**\n" +
	"`!timeleft` - show how long is left until the streak cut-off time\n\n" +
	"`!stats` - show a few useful stats\n\n" +
	"`!toggledm` - toggle direct messages for when your streak ends\n\n" +
	"`!togglementions` - toggle the bot mentioning you in announcements\n\n" +
	"`!showactivestreaks` - show all active streaks for all channels\n\n" +
	"**Admin**\n" +
	"`!setrole [top/active] [role name/id]` - set which role is the active streaks role or the top streaker role\n\n" +
	"`!setchannels channel1, channel2, channel3, etc` - set which channels streaks can be built up in using a comma-separated list or use `*` to specify all channels\n\n" +
	"`!checksetup` - show a checklist of settings required to use StreakBot"
