package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/streakbot/streakbot"
	"github.com/ellavondegurechaff/streakbot/streakbot/cache"
	"github.com/ellavondegurechaff/streakbot/streakbot/commands"
	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/database"
	"github.com/ellavondegurechaff/streakbot/streakbot/database/repositories"
	"github.com/ellavondegurechaff/streakbot/streakbot/handlers"
	"github.com/ellavondegurechaff/streakbot/streakbot/logger"
	"github.com/ellavondegurechaff/streakbot/streakbot/metrics"
	"github.com/ellavondegurechaff/streakbot/streakbot/platform"
	"github.com/ellavondegurechaff/streakbot/streakbot/scheduler"
	"github.com/ellavondegurechaff/streakbot/streakbot/server"
	"github.com/ellavondegurechaff/streakbot/streakbot/services"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting StreakBot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	useMemoryStore := flag.Bool("memory-store", false, "Keep streaks in memory instead of PostgreSQL")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := streakbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	loc, err := cfg.Streaks.Location()
	if err != nil {
		slog.Error("Invalid timezone", slog.Any("error", err))
		os.Exit(-1)
	}
	days := streaks.NewDayBoundary(loc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	b := streakbot.New(*cfg, version, commit)
	b.Metrics = metrics.New()

	var pinger server.Pinger
	if *useMemoryStore {
		slog.Warn("Using in-memory store, streaks are lost on restart", slog.String("type", "sys"))
		mem := streaks.NewMemoryStore()
		b.Store, b.Settings = mem, mem
	} else {
		db := connectDatabase(ctx, cfg.DB)
		defer db.Close()
		b.DB = db
		pinger = db
		b.Store = repositories.NewStreakRepository(db.BunDB())
		b.Settings = repositories.NewSettingsRepository(db.BunDB())
	}

	var leaderboard streaks.LeaderboardCache
	if cfg.Redis.URL != "" {
		client, err := cache.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Warn("Redis unavailable, leaderboard cache disabled",
				slog.String("type", "sys"),
				slog.Any("error", err))
		} else {
			defer client.Close()
			leaderboard = cache.NewLeaderboardCache(client, config.LeaderboardCacheTTL)
		}
	}

	h := handler.New()
	h.Command("/leaderboard", handlers.WrapWithLogging("leaderboard", b.Metrics, commands.LeaderboardHandler(b)))
	h.Command("/activestreaks", handlers.WrapWithLogging("activestreaks", b.Metrics, commands.ActiveStreaksHandler(b)))
	h.Command("/timeleft", handlers.WrapWithLogging("timeleft", b.Metrics, commands.TimeLeftHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		b.Client.Close(ctx)
	}()

	b.Platform = platform.NewDiscord(b.Client.Rest())
	b.Engine = streaks.NewEngine(b.Store, b.Settings, b.Platform, days,
		streaks.WithMinDescription(cfg.Streaks.MinDescription),
		streaks.WithLeaderboardCache(leaderboard),
		streaks.WithObserver(b.Metrics),
	)
	b.Aggregator = streaks.NewAggregator(b.Store, days, leaderboard)

	announcerOpts := []services.AnnouncerOption{
		services.WithFailureCounter(b.Metrics),
		services.WithAnnouncementChannel(cfg.Streaks.AnnouncementChannel),
		services.WithParallelism(config.MaxConcurrentGuilds),
	}
	if cfg.Spaces.Enabled() {
		archive, err := services.NewSpacesArchive(ctx, cfg.Spaces.Key, cfg.Spaces.Secret, cfg.Spaces.Region, cfg.Spaces.Bucket)
		if err != nil {
			slog.Warn("Snapshot archive disabled",
				slog.String("type", "sys"),
				slog.Any("error", err))
		} else {
			announcerOpts = append(announcerOpts, services.WithArchive(archive))
		}
	}
	announcer := services.NewAnnouncer(b.Engine, b.Aggregator, b.Settings, b.Platform, announcerOpts...)
	b.Scheduler = scheduler.New(loc, config.ScheduledJobTimeout, scheduler.DailyJobs(announcer, cfg.Streaks.Specs())...)
	defer b.Scheduler.Stop()

	router := commands.NewRouter(b.Engine, b.Aggregator, b.Settings, b.Platform,
		commands.WithPrefix(cfg.Streaks.CommandPrefix),
		commands.WithTopLimit(cfg.Streaks.TopLimit),
		commands.WithAnnouncementChannel(cfg.Streaks.AnnouncementChannel),
	)
	limiter := handlers.NewRateLimiter(config.CommandsPerSecond, config.CommandBurst, config.RateLimiterCacheSize)
	messages := handlers.NewMessageListener(router, b.Platform, limiter, b.Metrics)

	b.Client.AddEventListeners(
		messages.Listener(),
		handlers.GuildJoinHandler(b),
		handlers.MemberJoinHandler(b),
	)

	if cfg.HTTP.Addr != "" {
		srv := server.New(cfg.HTTP.Addr, pinger, b.Metrics.Handler())
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("Failed to stop HTTP server", slog.String("type", "sys"), slog.Any("error", err))
			}
		}()
	}

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}

func connectDatabase(ctx context.Context, cfg streakbot.DBConfig) *database.DB {
	slog.Info("Initializing database connection...")
	start := time.Now()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(start)))
		os.Exit(-1)
	}
	slog.Info("Database connected successfully",
		slog.String("database", cfg.Database),
		logger.Since(start))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.String("error", err.Error()))
		db.Close()
		os.Exit(-1)
	}
	return db
}
