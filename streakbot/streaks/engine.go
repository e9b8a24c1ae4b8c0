package streaks

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMinDescription is the minimum description length, in runes, of a
// progress message once the command token is removed.
const DefaultMinDescription = 20

// Observer receives the outcome of engine operations, e.g. for metrics.
type Observer interface {
	ObserveProgress(result string)
	ObserveRollover(guildID string, took time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveProgress(string)                       {}
func (noopObserver) ObserveRollover(string, time.Duration, error) {}

// Option configures an Engine.
type Option func(*Engine)

func WithMinDescription(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minDescription = n
		}
	}
}

func WithLeaderboardCache(c LeaderboardCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine is the streak state machine.
type Engine struct {
	store          Store
	settings       SettingsStore
	platform       Platform
	days           DayBoundary
	minDescription int
	cache          LeaderboardCache
	observer       Observer
	logger         *slog.Logger
}

func NewEngine(store Store, settings SettingsStore, platform Platform, days DayBoundary, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		settings:       settings,
		platform:       platform,
		days:           days,
		minDescription: DefaultMinDescription,
		observer:       noopObserver{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Days returns the engine's day boundary.
func (e *Engine) Days() DayBoundary {
	return e.days
}

// HoursUntilNextDay returns the hours left to continue a streak.
func (e *Engine) HoursUntilNextDay(now time.Time) int {
	return e.days.HoursUntilNextDay(now)
}

// RecordProgress validates p and applies it to the (guild, user, topic) streak.
func (e *Engine) RecordProgress(ctx context.Context, p Progress) (*Record, error) {
	rec, t, err := e.recordProgress(ctx, p)
	switch {
	case err == nil:
		e.observer.ObserveProgress(string(t))
	case errors.Is(err, ErrInvalidChannel):
		e.observer.ObserveProgress("invalid_channel")
	case errors.Is(err, ErrAlreadyStreaked):
		e.observer.ObserveProgress("already_streaked")
	case errors.Is(err, ErrInvalidMessage):
		e.observer.ObserveProgress("invalid_message")
	default:
		e.observer.ObserveProgress("error")
	}
	return rec, err
}

func (e *Engine) recordProgress(ctx context.Context, p Progress) (*Record, Transition, error) {
	settings, err := e.settings.GetGuildSettings(ctx, p.GuildID)
	if err != nil {
		return nil, "", storeErr("get_guild_settings", err)
	}
	if !settings.Channels.Allows(p.ChannelName) {
		return nil, "", invalid(ErrInvalidChannel, "you can't make any progress in this channel!")
	}

	body := StripCommand(p.Text)
	key := Key{GuildID: p.GuildID, UserID: p.UserID, Topic: ResolveTopic(body, p.ChannelName)}

	posted, err := e.HasStreakedToday(ctx, key, p.At)
	if err != nil {
		return nil, "", err
	}
	if posted {
		return nil, "", invalid(ErrAlreadyStreaked, "you've already made progress in this streak today!")
	}

	if err := e.validateBody(body, key.Topic); err != nil {
		return nil, "", err
	}

	today := e.days.DateOf(p.At)
	prev, next, t, err := e.advance(ctx, key, p, today)
	if err != nil {
		return nil, "", err
	}

	ev := &Event{
		ID:          uuid.NewString(),
		GuildID:     next.GuildID,
		UserID:      next.UserID,
		Topic:       next.Topic,
		Channel:     next.Channel,
		StreakLevel: next.StreakLevel,
		Transition:  t,
		PostedOn:    today,
		CreatedAt:   p.At,
	}
	if err := e.store.AppendEvent(ctx, ev); err != nil {
		e.logger.Warn("Failed to append streak event",
			slog.String("type", "db"),
			slog.String("guild_id", next.GuildID),
			slog.String("user_id", next.UserID),
			slog.Any("error", err))
	}

	if e.cache != nil && (prev == nil || prev.BestStreak != next.BestStreak) {
		e.cache.Invalidate(ctx, next.GuildID)
	}

	return next, t, nil
}

// advance writes the next state of key. A conflicting write is re-read and
// tried once more, since a rollover breaking the record also conflicts;
// only a record that already shows today's post is reported as a duplicate.
func (e *Engine) advance(ctx context.Context, key Key, p Progress, today Date) (prev, next *Record, t Transition, err error) {
	for attempt := 0; attempt < 2; attempt++ {
		prev, err = e.store.GetStreak(ctx, key)
		if errors.Is(err, ErrNotFound) {
			prev, err = nil, nil
		}
		if err != nil {
			return nil, nil, "", storeErr("get_streak", err)
		}

		next, t = Advance(prev, key, p.ChannelName, today)
		if t == Unchanged {
			break
		}
		next.UpdatedAt = p.At

		err = e.store.SaveStreak(ctx, prev, next)
		if err == nil {
			return prev, next, t, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, nil, "", storeErr("save_streak", err)
		}
	}
	return nil, nil, "", invalid(ErrAlreadyStreaked, "you've already made progress in this streak today!")
}

func (e *Engine) validateBody(body, topic string) error {
	if body == "" {
		return invalid(ErrInvalidMessage, "you can start a streak by using `!streak [#topic (optional)] [what you did]`. "+
			"You need to supply a small description of the work in your message for it to count")
	}
	if utf8.RuneCountInString(body) < e.minDescription {
		return invalid(ErrInvalidMessage, "you need to be more descriptive about this progress for it to count.")
	}
	if !validTopic(topic) {
		return invalid(ErrInvalidMessage, "that isn't a valid topic.")
	}
	return nil
}

// HasStreakedToday reports whether key already has a qualifying post on
// now's calendar day. It never writes.
func (e *Engine) HasStreakedToday(ctx context.Context, key Key, now time.Time) (bool, error) {
	rec, err := e.store.GetStreak(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("get_streak", err)
	}
	return rec.StreakLevel > 0 && e.days.DateOf(now).DaysSince(rec.LastPostedOn) <= 0, nil
}

// UserStreak is a user's alive streak annotated with today's status.
type UserStreak struct {
	*Record
	PostedToday bool
}

// UserStreaks returns the alive streaks of userID across all guilds.
func (e *Engine) UserStreaks(ctx context.Context, userID string, now time.Time) ([]UserStreak, error) {
	records, err := e.store.ListUserStreaks(ctx, userID)
	if err != nil {
		return nil, storeErr("list_user_streaks", err)
	}

	today := e.days.DateOf(now)
	out := make([]UserStreak, 0, len(records))
	for _, rec := range records {
		state := StateOn(rec, today)
		if state != Active && state != Stale {
			continue
		}
		out = append(out, UserStreak{Record: rec, PostedToday: state == Active})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StreakLevel > out[j].StreakLevel
	})
	return out, nil
}

// Settings returns the guild's settings.
func (e *Engine) Settings(ctx context.Context, guildID string) (*GuildSettings, error) {
	s, err := e.settings.GetGuildSettings(ctx, guildID)
	if err != nil {
		return nil, storeErr("get_guild_settings", err)
	}
	return s, nil
}

// ChannelAllowed reports whether channel is eligible for streaks in guildID.
func (e *Engine) ChannelAllowed(ctx context.Context, guildID, channel string) (bool, error) {
	s, err := e.Settings(ctx, guildID)
	if err != nil {
		return false, err
	}
	return s.Channels.Allows(channel), nil
}

