package streaks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	top         map[string][]*Record
	gen         map[string]uint64
	gets, sets  int
	invalidated int
}

func newCountingCache() *countingCache {
	return &countingCache{top: map[string][]*Record{}, gen: map[string]uint64{}}
}

func (c *countingCache) GetTop(_ context.Context, guildID string, _ int) ([]*Record, uint64, bool) {
	c.gets++
	r, ok := c.top[guildID]
	return r, c.gen[guildID], ok
}

func (c *countingCache) SetTop(_ context.Context, guildID string, _ int, gen uint64, records []*Record) {
	if c.gen[guildID] != gen {
		return
	}
	c.sets++
	c.top[guildID] = records
}

func (c *countingCache) Invalidate(_ context.Context, guildID string) {
	c.invalidated++
	c.gen[guildID]++
	delete(c.top, guildID)
}

func TestAggregator_TopAllTimeStreaks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	start := Date{2026, time.January, 1}

	for i := 0; i < 15; i++ {
		require.NoError(t, store.SaveStreak(ctx, nil, &Record{
			GuildID:      "g1",
			UserID:       fmt.Sprintf("u%02d", i),
			Topic:        "#writing",
			StreakLevel:  1,
			BestStreak:   (i % 5) + 1,
			LastPostedOn: start.AddDays(30),
			CreatedOn:    start.AddDays(i),
		}))
	}
	require.NoError(t, store.SaveStreak(ctx, nil, &Record{GuildID: "g2", UserID: "x", Topic: "#x", StreakLevel: 99, BestStreak: 99}))

	agg := NewAggregator(store, NewDayBoundary(time.UTC), nil)
	top, err := agg.TopAllTimeStreaks(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, top, 10)

	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].BestStreak, top[i].BestStreak)
		if top[i-1].BestStreak == top[i].BestStreak {
			assert.True(t, top[i-1].CreatedOn.Before(top[i].CreatedOn))
		}
		assert.Equal(t, "g1", top[i].GuildID)
	}
	assert.Equal(t, "u04", top[0].UserID)

	top, err = agg.TopAllTimeStreaks(ctx, "g1", 0)
	require.NoError(t, err)
	assert.Len(t, top, DefaultTopLimit)
}

func TestAggregator_TopAllTimeStreaksUsesCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SaveStreak(ctx, nil, &Record{GuildID: "g1", UserID: "u1", Topic: "#a", StreakLevel: 1, BestStreak: 3}))

	cache := newCountingCache()
	agg := NewAggregator(store, NewDayBoundary(time.UTC), cache)

	_, err := agg.TopAllTimeStreaks(ctx, "g1", 10)
	require.NoError(t, err)
	top, err := agg.TopAllTimeStreaks(ctx, "g1", 10)
	require.NoError(t, err)

	assert.Len(t, top, 1)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.sets)
}

// writeDuringListStore records a new best streak while the aggregator is
// reading, the way a concurrent engine write would.
type writeDuringListStore struct {
	*MemoryStore
	write func()
}

func (s *writeDuringListStore) ListGuildStreaks(ctx context.Context, guildID string) ([]*Record, error) {
	records, err := s.MemoryStore.ListGuildStreaks(ctx, guildID)
	if s.write != nil {
		s.write()
		s.write = nil
	}
	return records, err
}

func TestAggregator_TopAllTimeStreaksSkipsCacheAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.SetChannels(ctx, "g1", ChannelConfig{All: true}))
	require.NoError(t, mem.SaveStreak(ctx, nil, &Record{GuildID: "g1", UserID: "u2", Topic: "#a", StreakLevel: 1, BestStreak: 3}))

	cache := newCountingCache()
	engine := NewEngine(mem, mem, nil, NewDayBoundary(time.UTC), WithLeaderboardCache(cache))
	store := &writeDuringListStore{MemoryStore: mem, write: func() {
		_, err := engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
		require.NoError(t, err)
	}}
	agg := NewAggregator(store, NewDayBoundary(time.UTC), cache)

	top, err := agg.TopAllTimeStreaks(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Len(t, top, 1)
	assert.Equal(t, 1, cache.invalidated)
	assert.Zero(t, cache.sets)
	assert.NotContains(t, cache.top, "g1")

	top, err = agg.TopAllTimeStreaks(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)
	assert.Equal(t, 1, cache.sets)
}

func TestEngine_NewRecordInvalidatesLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetChannels(ctx, "g1", ChannelConfig{All: true}))
	cache := newCountingCache()
	cache.top["g1"] = nil

	engine := NewEngine(store, store, nil, NewDayBoundary(time.UTC), WithLeaderboardCache(cache))
	_, err := engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
	require.NoError(t, err)

	assert.Equal(t, 1, cache.invalidated)
	assert.NotContains(t, cache.top, "g1")
}

func TestAggregator_ActiveStreaksForChannel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	today := Date{2026, time.March, 10}

	records := []*Record{
		{GuildID: "g1", UserID: "u1", Topic: "#writing", Channel: "writing", StreakLevel: 2, BestStreak: 2, LastPostedOn: today},
		{GuildID: "g1", UserID: "u2", Topic: "#writing", Channel: "general", StreakLevel: 5, BestStreak: 5, LastPostedOn: today.AddDays(-1)},
		{GuildID: "g1", UserID: "u3", Topic: "#novel", Channel: "writing", StreakLevel: 1, BestStreak: 1, LastPostedOn: today},
		{GuildID: "g1", UserID: "u4", Topic: "#writing", Channel: "writing", StreakLevel: 9, BestStreak: 9, LastPostedOn: today.AddDays(-2)},
		{GuildID: "g1", UserID: "u5", Topic: "#art", Channel: "art", StreakLevel: 4, BestStreak: 4, LastPostedOn: today},
	}
	for _, r := range records {
		require.NoError(t, store.SaveStreak(ctx, nil, r))
	}

	agg := NewAggregator(store, NewDayBoundary(time.UTC), nil)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	got, err := agg.ActiveStreaksForChannel(ctx, "g1", "writing", now)
	require.NoError(t, err)
	var users []string
	for _, r := range got {
		users = append(users, r.UserID)
	}
	assert.Equal(t, []string{"u2", "u1", "u3"}, users)

	all, err := agg.ActiveStreaksForGuild(ctx, "g1", now)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "u2", all[0].UserID)
}

func TestAggregator_StatCountIsMonotonic(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, ChannelConfig{All: true})
	agg := NewAggregator(store, engine.Days(), nil)

	var last int64
	for day := 1; day <= 5; day++ {
		_, err := engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(day, 9, 0)))
		require.NoError(t, err)
		_, err = engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(day, 10, 0)))
		require.Error(t, err)

		n, err := agg.StatCount(ctx, StatStreaks)
		require.NoError(t, err)
		assert.Greater(t, n, last)
		last = n
	}
	assert.EqualValues(t, 5, last)

	users, err := agg.StatCount(ctx, StatUsers)
	require.NoError(t, err)
	assert.EqualValues(t, 1, users)

	_, err = agg.StatCount(ctx, StatKind("guilds"))
	assert.Error(t, err)
}

func TestAggregator_FirstStreakDate(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, ChannelConfig{All: true})
	agg := NewAggregator(store, engine.Days(), nil)

	_, ok, err := agg.FirstStreakDate(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(2, 9, 0)))
	require.NoError(t, err)

	d, ok, err := agg.FirstStreakDate(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Date{2026, time.March, 2}, d)
}
