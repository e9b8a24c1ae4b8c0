package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/platform"
	"github.com/ellavondegurechaff/streakbot/streakbot/scheduler"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// Archiver stores a rollover snapshot.
type Archiver interface {
	Upload(ctx context.Context, snap *Snapshot) error
}

// FailureCounter counts failed outbound messages by kind.
type FailureCounter interface {
	BroadcastFailed(kind string)
}

type noopCounter struct{}

func (noopCounter) BroadcastFailed(string) {}

// Failure kinds reported to the FailureCounter.
const (
	FailureAnnouncement = "announcement"
	FailureWarning      = "warning"
	FailureDM           = "dm"
	FailureRole         = "role"
	FailureArchive      = "archive"
)

// Announcer runs the daily jobs against every known guild.
type Announcer struct {
	engine   *streaks.Engine
	agg      *streaks.Aggregator
	settings streaks.SettingsStore
	platform streaks.Platform
	archive  Archiver
	failures FailureCounter
	channel  string
	parallel int64
}

var _ scheduler.Runner = (*Announcer)(nil)

type AnnouncerOption func(*Announcer)

// WithArchive uploads a snapshot of every guild after its rollover.
func WithArchive(a Archiver) AnnouncerOption {
	return func(an *Announcer) {
		an.archive = a
	}
}

func WithFailureCounter(c FailureCounter) AnnouncerOption {
	return func(an *Announcer) {
		if c != nil {
			an.failures = c
		}
	}
}

// WithAnnouncementChannel sets the channel name broadcasts are posted in.
func WithAnnouncementChannel(name string) AnnouncerOption {
	return func(an *Announcer) {
		if name != "" {
			an.channel = name
		}
	}
}

func WithParallelism(n int) AnnouncerOption {
	return func(an *Announcer) {
		if n > 0 {
			an.parallel = int64(n)
		}
	}
}

func NewAnnouncer(engine *streaks.Engine, agg *streaks.Aggregator, settings streaks.SettingsStore, platform streaks.Platform, opts ...AnnouncerOption) *Announcer {
	a := &Announcer{
		engine:   engine,
		agg:      agg,
		settings: settings,
		platform: platform,
		failures: noopCounter{},
		channel:  config.DefaultAnnouncementChannel,
		parallel: config.MaxConcurrentGuilds,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewDay applies the rollover to every guild and broadcasts the result.
// A failing guild never stops the others; all failures are returned joined.
func (a *Announcer) NewDay(ctx context.Context, now time.Time) error {
	return a.forEachGuild(ctx, "new_day", func(ctx context.Context, guildID string) error {
		return a.newDay(ctx, guildID, now)
	})
}

// Warn posts the time left in the current day to every guild.
func (a *Announcer) Warn(ctx context.Context, now time.Time) error {
	text := WarningMessage(a.engine.HoursUntilNextDay(now))
	return a.forEachGuild(ctx, "warning", func(ctx context.Context, guildID string) error {
		if err := a.platform.SendChannelMessage(ctx, guildID, a.channel, text); err != nil {
			a.failures.BroadcastFailed(FailureWarning)
			return &streaks.PlatformCallError{GuildID: guildID, Op: "send_warning", Err: err}
		}
		return nil
	})
}

func (a *Announcer) newDay(ctx context.Context, guildID string, now time.Time) error {
	res, err := a.engine.ApplyDailyRollover(ctx, guildID, now)
	if err != nil {
		// streaks broken before the failure stay broken, so their owners are still told
		if res != nil {
			a.notifyBroken(ctx, res.Broken)
		}
		return fmt.Errorf("rollover guild %s: %w", guildID, err)
	}
	for range res.Errors {
		a.failures.BroadcastFailed(FailureRole)
	}

	var errs []error
	text := a.NewDayMessage(ctx, res)
	if err := a.platform.SendChannelMessage(ctx, guildID, a.channel, text); err != nil {
		a.failures.BroadcastFailed(FailureAnnouncement)
		errs = append(errs, &streaks.PlatformCallError{GuildID: guildID, Op: "send_new_day", Err: err})
	}

	a.notifyBroken(ctx, res.Broken)

	if a.archive != nil {
		if err := a.upload(ctx, res, now); err != nil {
			a.failures.BroadcastFailed(FailureArchive)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Announcer) upload(ctx context.Context, res *streaks.RolloverResult, now time.Time) error {
	alive, err := a.agg.ActiveStreaksForGuild(ctx, res.GuildID, now)
	if err != nil {
		return err
	}
	return a.archive.Upload(ctx, NewSnapshot(res, alive, now))
}

// notifyBroken DMs the owners of broken streaks who asked for it.
// Failures are logged and counted only.
func (a *Announcer) notifyBroken(ctx context.Context, broken []*streaks.Record) {
	sort.Slice(broken, func(i, j int) bool {
		if broken[i].UserID != broken[j].UserID {
			return broken[i].UserID < broken[j].UserID
		}
		return broken[i].Topic < broken[j].Topic
	})

	for _, rec := range broken {
		prefs, err := a.settings.GetPreferences(ctx, rec.UserID)
		if err != nil {
			slog.Warn("Failed to load user preferences",
				slog.String("type", "db"),
				slog.String("user_id", rec.UserID),
				slog.Any("error", err))
			continue
		}
		if !prefs.DMOnBreak {
			continue
		}
		if err := a.platform.SendDirectMessage(ctx, rec.UserID, BrokenMessage(rec)); err != nil {
			a.failures.BroadcastFailed(FailureDM)
			slog.Warn("Failed to send streak ended DM",
				slog.String("type", "sys"),
				slog.String("user_id", rec.UserID),
				slog.String("topic", rec.Topic),
				slog.Any("error", err))
		}
	}
}

// NewDayMessage renders the announcement for res. Users who disabled
// mentions are named instead of pinged.
func (a *Announcer) NewDayMessage(ctx context.Context, res *streaks.RolloverResult) string {
	var b strings.Builder
	b.WriteString("🌅 **A new day has started!**\n\n")

	if len(res.Active) == 0 {
		b.WriteString("Nobody continued a streak yesterday. Use `!streak [#topic (optional)] [what you did]` to start one today!")
		return b.String()
	}

	names := make([]string, 0, len(res.Top))
	for _, s := range res.Top {
		names = append(names, a.displayName(ctx, s.UserID))
	}
	fmt.Fprintf(&b, "👑 Top %s: %s with %s\n\n",
		plural(len(res.Top), "streaker", "streakers"),
		strings.Join(names, ", "),
		Days(res.Top[0].Level))

	b.WriteString("🔥 Active streakers:\n")
	for _, s := range res.Active {
		fmt.Fprintf(&b, "%s - *%s* %s\n", a.displayName(ctx, s.UserID), s.Topic, Days(s.Level))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Announcer) displayName(ctx context.Context, userID string) string {
	prefs, err := a.settings.GetPreferences(ctx, userID)
	if err == nil && prefs.MentionInNews {
		return platform.Mention(userID)
	}
	name, err := a.platform.FetchUsername(ctx, userID)
	if err != nil {
		return "**unknown user**"
	}
	return "**" + name + "**"
}

func (a *Announcer) forEachGuild(ctx context.Context, job string, fn func(context.Context, string) error) error {
	guildIDs, err := a.settings.ListGuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("list guilds: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	sem := semaphore.NewWeighted(a.parallel)
	g, gctx := errgroup.WithContext(ctx)

	for _, guildID := range guildIDs {
		guildID := guildID
		if err := sem.Acquire(gctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			start := time.Now()
			err := fn(gctx, guildID)
			attrs := []any{
				slog.String("type", "sys"),
				slog.String("name", job),
				slog.String("guild_id", guildID),
				slog.Duration("took", time.Since(start)),
			}
			if err != nil {
				slog.Error("Guild broadcast failed", append(attrs, slog.Any("error", err))...)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			slog.Debug("Guild broadcast completed", attrs...)
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// WarningMessage is the reminder posted before the day ends.
func WarningMessage(hours int) string {
	if hours <= 1 {
		return "⏳ There is under an hour left to continue a streak! Use `!streak [#topic (optional)] [what you did]` before the day ends."
	}
	return fmt.Sprintf("⏰ There are %d hours left to continue a streak! Use `!streak [#topic (optional)] [what you did]` before the day ends.", hours)
}

// BrokenMessage is the DM sent when rec's streak ended at rollover.
func BrokenMessage(rec *streaks.Record) string {
	return fmt.Sprintf("Your *%s* streak of %s has ended 😢. Use `!streak` to start a new one today! (turn these messages off with `!toggledm`)",
		rec.Topic, Days(rec.StreakLevel))
}

// Days formats n as "1 day" or "n days".
func Days(n int) string {
	return fmt.Sprintf("%d %s", n, plural(n, "day", "days"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
