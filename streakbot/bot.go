package streakbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/ellavondegurechaff/streakbot/streakbot/database"
	"github.com/ellavondegurechaff/streakbot/streakbot/metrics"
	"github.com/ellavondegurechaff/streakbot/streakbot/platform"
	"github.com/ellavondegurechaff/streakbot/streakbot/scheduler"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg        Config
	Client     bot.Client
	Paginator  *paginator.Manager
	Version    string
	Commit     string
	DB         *database.DB
	Store      streaks.Store
	Settings   streaks.SettingsStore
	Engine     *streaks.Engine
	Aggregator *streaks.Aggregator
	Platform   *platform.Discord
	Scheduler  *scheduler.SchedulerState
	Metrics    *metrics.Metrics
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMessages,
			gateway.IntentDirectMessages,
			gateway.IntentMessageContent,
			gateway.IntentGuildMembers,
		)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

// OnReady fires on the first connect and on every reconnect. The daily
// jobs are rebuilt each time so no duplicate schedules survive.
func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("StreakBot is now ready",
		slog.String("type", "sys"),
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	if b.Scheduler != nil {
		if err := b.Scheduler.Reset(); err != nil {
			slog.Error("Failed to schedule daily jobs",
				slog.String("type", "sys"),
				slog.Any("error", err))
		} else {
			for _, e := range b.Scheduler.Entries() {
				slog.Info("Daily job scheduled",
					slog.String("type", "sys"),
					slog.String("name", e.Name),
					slog.Time("next", e.Next))
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithListeningActivity("!help"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
