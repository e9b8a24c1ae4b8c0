package streaks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultTopLimit is the all-time leaderboard size used when none is given.
const DefaultTopLimit = 10

// Aggregator answers read-only leaderboard and statistics queries.
type Aggregator struct {
	store Store
	days  DayBoundary
	cache LeaderboardCache
}

func NewAggregator(store Store, days DayBoundary, cache LeaderboardCache) *Aggregator {
	return &Aggregator{store: store, days: days, cache: cache}
}

// ActiveStreaksForChannel returns alive streaks built in channelName, highest first.
func (a *Aggregator) ActiveStreaksForChannel(ctx context.Context, guildID, channelName string, now time.Time) ([]*Record, error) {
	records, err := a.store.ListGuildStreaks(ctx, guildID)
	if err != nil {
		return nil, storeErr("list_guild_streaks", err)
	}

	today := a.days.DateOf(now)
	topic := ChannelTopic(channelName)
	var out []*Record
	for _, rec := range records {
		if !Alive(rec, today) {
			continue
		}
		if rec.Channel == channelName || rec.Topic == topic {
			out = append(out, rec)
		}
	}
	sortByLevel(out)
	return out, nil
}

// ActiveStreaksForGuild returns every alive streak in guildID, highest first.
func (a *Aggregator) ActiveStreaksForGuild(ctx context.Context, guildID string, now time.Time) ([]*Record, error) {
	records, err := a.store.ListGuildStreaks(ctx, guildID)
	if err != nil {
		return nil, storeErr("list_guild_streaks", err)
	}

	today := a.days.DateOf(now)
	var out []*Record
	for _, rec := range records {
		if Alive(rec, today) {
			out = append(out, rec)
		}
	}
	sortByLevel(out)
	return out, nil
}

// TopAllTimeStreaks returns at most limit records ordered by best streak,
// earliest start first on ties.
func (a *Aggregator) TopAllTimeStreaks(ctx context.Context, guildID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	var gen uint64
	if a.cache != nil {
		cached, g, ok := a.cache.GetTop(ctx, guildID, limit)
		if ok {
			return cached, nil
		}
		gen = g
	}

	records, err := a.store.ListGuildStreaks(ctx, guildID)
	if err != nil {
		return nil, storeErr("list_guild_streaks", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		if ri.BestStreak != rj.BestStreak {
			return ri.BestStreak > rj.BestStreak
		}
		if ri.CreatedOn != rj.CreatedOn {
			return ri.CreatedOn.Before(rj.CreatedOn)
		}
		return ri.UserID < rj.UserID
	})
	if len(records) > limit {
		records = records[:limit]
	}

	if a.cache != nil {
		// dropped if a write invalidated the guild since GetTop
		a.cache.SetTop(ctx, guildID, limit, gen, records)
	}
	return records, nil
}

// StatCount returns a global, monotonically non-decreasing counter.
func (a *Aggregator) StatCount(ctx context.Context, kind StatKind) (int64, error) {
	switch kind {
	case StatUsers, StatStreaks:
	default:
		return 0, fmt.Errorf("unknown stat kind %q", kind)
	}
	n, err := a.store.StatCount(ctx, kind)
	if err != nil {
		return 0, storeErr("stat_count", err)
	}
	return n, nil
}

// FirstStreakDate returns the day of the guild's first streak. The boolean is
// false when nobody has started a streak yet.
func (a *Aggregator) FirstStreakDate(ctx context.Context, guildID string) (Date, bool, error) {
	d, err := a.store.FirstStreakDate(ctx, guildID)
	if errors.Is(err, ErrNotFound) {
		return Date{}, false, nil
	}
	if err != nil {
		return Date{}, false, storeErr("first_streak_date", err)
	}
	return d, true, nil
}

func sortByLevel(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		if ri.StreakLevel != rj.StreakLevel {
			return ri.StreakLevel > rj.StreakLevel
		}
		return ri.CreatedOn.Before(rj.CreatedOn)
	})
}
