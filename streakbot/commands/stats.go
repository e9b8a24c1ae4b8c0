package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/ellavondegurechaff/streakbot/streakbot/services"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

func (r *Router) stats(ctx context.Context, m Message, _ string) (Reply, error) {
	if !m.inGuild() {
		return text(guildOnly), nil
	}

	users, err := r.agg.StatCount(ctx, streaks.StatUsers)
	if err != nil {
		return Reply{}, err
	}
	updates, err := r.agg.StatCount(ctx, streaks.StatStreaks)
	if err != nil {
		return Reply{}, err
	}

	first, ok, err := r.agg.FirstStreakDate(ctx, m.GuildID)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return text("no one has started a streak in this server yet, why not be the first?"), nil
	}

	top, err := r.agg.TopAllTimeStreaks(ctx, m.GuildID, r.topLimit)
	if err != nil {
		return Reply{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "so far %d users have used StreakBot and there have been %d streak updates dating back to %s \n", users, updates, first)
	fmt.Fprintf(&b, "👑 Here are the top %d best streaks of all time:\n", r.topLimit)
	for i, rec := range top {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. **%s** for *%s* with %s!", i+1, r.username(ctx, rec.UserID), rec.Topic, services.Days(rec.BestStreak))
	}
	return text(b.String()), nil
}

func (r *Router) showStreaks(ctx context.Context, m Message, _ string) (Reply, error) {
	if !m.inGuild() || m.ChannelName == "" {
		return text("You can't do that here, you can only run that command in a channel."), nil
	}

	allowed, err := r.engine.ChannelAllowed(ctx, m.GuildID, m.ChannelName)
	if err != nil {
		return Reply{}, err
	}
	if !allowed {
		return text("you can't make any progress in this channel!"), nil
	}

	list, err := r.agg.ActiveStreaksForChannel(ctx, m.GuildID, m.ChannelName, m.At)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return text(fmt.Sprintf("there are currently no streaks in #%s 😞. Why not change that?", m.ChannelName)), nil
	}

	lines := make([]string, 0, len(list))
	for _, rec := range list {
		lines = append(lines, fmt.Sprintf("**%s** with %s", r.username(ctx, rec.UserID), services.Days(rec.StreakLevel)))
	}
	return text(fmt.Sprintf("here are all the active streaks in *%s*:\n\n%s", m.ChannelName, strings.Join(lines, "\n"))), nil
}

func (r *Router) showActiveStreaks(ctx context.Context, m Message, _ string) (Reply, error) {
	if !m.inGuild() {
		return text(guildOnly), nil
	}

	list, err := r.agg.ActiveStreaksForGuild(ctx, m.GuildID, m.At)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return text("there are currently no active streaks. Use `!streak [#topic (optional)] [what you did]` to start a streak for your chosen topic!"), nil
	}

	lines := make([]string, 0, len(list))
	for _, rec := range list {
		lines = append(lines, fmt.Sprintf("**%s** - *%s* %s", r.username(ctx, rec.UserID), rec.Topic, services.Days(rec.StreakLevel)))
	}
	return text("here are all the active streaks:\n\n" + strings.Join(lines, "\n")), nil
}

func (r *Router) username(ctx context.Context, userID string) string {
	name, err := r.dir.FetchUsername(ctx, userID)
	if err != nil {
		return "unknown user"
	}
	return name
}
