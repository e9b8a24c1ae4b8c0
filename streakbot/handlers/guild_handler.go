package handlers

import (
	"context"
	"log/slog"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"

	"github.com/ellavondegurechaff/streakbot/streakbot"
	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/logger"
	"github.com/ellavondegurechaff/streakbot/streakbot/services"
)

const SetupText = "Before users can start creating streaks, you'll need to setup a few things:\n\n" +
	"1. Setup the top streaker role - a role assigned to users with the highest streaks at the start of a new day. Use: `!setrole top [role name/id]`\n\n" +
	"2. Setup the active streaker role - a role assigned to users with an active streak at the start of a new day. Use: `!setrole active [role name/id]`\n\n" +
	"3. Create a channel called `announcements` - this is where the bot will post time warnings and list the top/active streakers\n\n" +
	"4. Setup the channels users can start streaks in. Use: `!setchannels channel1, channel2, channel3, etc` or `!setchannels *`\n\n" +
	"You can use the command `!checksetup` to verify your settings. Once all that's done, feel free to delete this channel.\n" +
	"*Tip: use the `!help` command to list all the available commands.*"

const WelcomeText = "Welcome!\n" +
	"The server you just joined uses StreakBot so you can keep up a daily routine of working on something, however minor, for your current project\n" +
	"In order to start or continue a streak, simply send a message starting with !streak (with an optional #topic) in a specific channel along with a description of what you did\n" +
	"You can also type !help if you ever forget any commands"

// GuildJoinHandler creates the setup channel when the bot is added to a guild.
func GuildJoinHandler(b *streakbot.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildJoin) {
		ctx, cancel := context.WithTimeout(context.Background(), config.PlatformCallTimeout)
		defer cancel()

		logger.LogSystem("Joined guild",
			slog.String("guild_id", e.GuildID.String()),
			slog.String("name", e.Guild.Name))

		if err := b.Platform.CreateSetupChannel(ctx, e.GuildID, config.SetupChannelName, SetupText); err != nil {
			logger.LogError("Failed to create setup channel", err,
				slog.String("guild_id", e.GuildID.String()))
		}
	})
}

// MemberJoinHandler welcomes new members by direct message.
func MemberJoinHandler(b *streakbot.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildMemberJoin) {
		if e.Member.User.Bot {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.PlatformCallTimeout)
		defer cancel()

		userID := e.Member.User.ID.String()
		logger.LogSystem("Member joined",
			slog.String("guild_id", e.GuildID.String()),
			slog.String("user_id", userID),
			slog.String("user_name", e.Member.User.Username))

		if err := b.Platform.SendDirectMessage(ctx, userID, WelcomeText); err != nil {
			if b.Metrics != nil {
				b.Metrics.BroadcastFailed(services.FailureDM)
			}
			slog.Warn("Failed to send welcome DM",
				slog.String("type", "sys"),
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
	})
}
