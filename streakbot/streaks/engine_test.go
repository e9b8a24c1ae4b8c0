package streaks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, min int) time.Time {
	return time.Date(2026, time.March, day, hour, min, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T, channels ChannelConfig) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.SetChannels(context.Background(), "g1", channels))
	return NewEngine(store, store, nil, NewDayBoundary(time.UTC)), store
}

func progress(text string, when time.Time) Progress {
	return Progress{GuildID: "g1", UserID: "u1", ChannelName: "general", Text: text, At: when}
}

func TestEngine_RecordProgressScenario(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, ChannelConfig{Channels: []string{"general"}})
	msg := "!streak #writing worked on chapter 3"

	rec, err := engine.RecordProgress(ctx, progress(msg, at(1, 9, 0)))
	require.NoError(t, err)
	assert.Equal(t, "#writing", rec.Topic)
	assert.Equal(t, 1, rec.StreakLevel)

	rec, err = engine.RecordProgress(ctx, progress(msg, at(2, 21, 15)))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.StreakLevel)
	assert.Equal(t, 2, rec.BestStreak)

	// day 3 skipped
	rec, err = engine.RecordProgress(ctx, progress(msg, at(4, 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.StreakLevel)
	assert.Equal(t, 2, rec.BestStreak)
}

func TestEngine_SecondPostSameDayIsRejected(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, ChannelConfig{All: true})
	msg := "!streak #writing worked on chapter 3"

	_, err := engine.RecordProgress(ctx, progress(msg, at(1, 0, 0)))
	require.NoError(t, err)

	_, err = engine.RecordProgress(ctx, progress(msg, at(1, 23, 59)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyStreaked))
	assert.True(t, IsUserError(err))

	rec, err := store.GetStreak(ctx, Key{GuildID: "g1", UserID: "u1", Topic: "#writing"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.StreakLevel)
}

func TestEngine_TopicsAreIndependent(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, ChannelConfig{All: true})

	_, err := engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
	require.NoError(t, err)

	rec, err := engine.RecordProgress(ctx, progress("!streak practiced scales for an hour", at(1, 10, 0)))
	require.NoError(t, err)
	assert.Equal(t, "#general", rec.Topic)
	assert.Equal(t, 1, rec.StreakLevel)
}

func TestEngine_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		channels ChannelConfig
		text     string
		channel  string
		wantKind error
	}{
		{"channel not eligible", ChannelConfig{Channels: []string{"writing"}}, "!streak worked on chapter 3 today", "general", ErrInvalidChannel},
		{"no channels configured", ChannelConfig{}, "!streak worked on chapter 3 today", "general", ErrInvalidChannel},
		{"no description", ChannelConfig{All: true}, "!streak", "general", ErrInvalidMessage},
		{"description too short", ChannelConfig{All: true}, "!streak did stuff", "general", ErrInvalidMessage},
		{"empty topic", ChannelConfig{All: true}, "!streak # worked on chapter 3 today", "general", ErrInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store := newTestEngine(t, tt.channels)
			p := progress(tt.text, at(1, 12, 0))
			p.ChannelName = tt.channel

			_, err := engine.RecordProgress(ctx, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantKind), "got %v", err)
			assert.True(t, IsUserError(err))

			n, err := store.StatCount(ctx, StatStreaks)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestEngine_HasStreakedTodayIsReadOnly(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, ChannelConfig{All: true})
	key := Key{GuildID: "g1", UserID: "u1", Topic: "#writing"}

	posted, err := engine.HasStreakedToday(ctx, key, at(1, 8, 0))
	require.NoError(t, err)
	assert.False(t, posted)

	_, err = engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		posted, err = engine.HasStreakedToday(ctx, key, at(1, 23, 0))
		require.NoError(t, err)
		assert.True(t, posted)
	}
	posted, err = engine.HasStreakedToday(ctx, key, at(2, 0, 0))
	require.NoError(t, err)
	assert.False(t, posted)

	rec, err := store.GetStreak(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.StreakLevel)
}

func TestEngine_ConcurrentDuplicatesOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, ChannelConfig{All: true})

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrAlreadyStreaked), "got %v", err)
	}
	assert.Equal(t, 1, ok)

	n, err := store.StatCount(ctx, StatStreaks)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

type conflictStore struct {
	*MemoryStore
}

func (conflictStore) SaveStreak(context.Context, *Record, *Record) error {
	return ErrConflict
}

func TestEngine_LostWriteRaceIsAlreadyStreaked(t *testing.T) {
	mem := NewMemoryStore()
	require.NoError(t, mem.SetChannels(context.Background(), "g1", ChannelConfig{All: true}))
	engine := NewEngine(conflictStore{mem}, mem, nil, NewDayBoundary(time.UTC))

	_, err := engine.RecordProgress(context.Background(), progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
	assert.True(t, errors.Is(err, ErrAlreadyStreaked))
}

// rolloverRaceStore breaks stale records right before the first write, as a
// rollover running between the engine's read and its write would.
type rolloverRaceStore struct {
	*MemoryStore
	cutoff Date
	raced  bool
}

func (s *rolloverRaceStore) SaveStreak(ctx context.Context, prev, next *Record) error {
	if !s.raced {
		s.raced = true
		if _, err := s.MemoryStore.BreakStale(ctx, next.GuildID, s.cutoff); err != nil {
			return err
		}
	}
	return s.MemoryStore.SaveStreak(ctx, prev, next)
}

func TestEngine_ConflictWithRolloverIsRetried(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.SetChannels(ctx, "g1", ChannelConfig{All: true}))
	require.NoError(t, mem.SaveStreak(ctx, nil, &Record{
		GuildID: "g1", UserID: "u1", Topic: "#writing", Channel: "general",
		StreakLevel: 4, BestStreak: 4,
		LastPostedOn: Date{2026, time.February, 27},
		CreatedOn:    Date{2026, time.February, 24},
	}))

	store := &rolloverRaceStore{MemoryStore: mem, cutoff: Date{2026, time.March, 1}}
	engine := NewEngine(store, mem, nil, NewDayBoundary(time.UTC))

	rec, err := engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(2, 9, 0)))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.StreakLevel)
	assert.Equal(t, 4, rec.BestStreak)
	assert.Equal(t, Date{2026, time.March, 2}, rec.LastPostedOn)

	_, err = engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 4", at(2, 10, 0)))
	assert.True(t, errors.Is(err, ErrAlreadyStreaked))
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) GetStreak(context.Context, Key) (*Record, error) {
	return nil, errors.New("connection refused")
}

func TestEngine_StoreFailureIsStoreUnavailable(t *testing.T) {
	mem := NewMemoryStore()
	require.NoError(t, mem.SetChannels(context.Background(), "g1", ChannelConfig{All: true}))
	engine := NewEngine(failingStore{mem}, mem, nil, NewDayBoundary(time.UTC))

	_, err := engine.RecordProgress(context.Background(), progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
	var se *StoreUnavailableError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "get_streak", se.Op)
	assert.False(t, IsUserError(err))
}

func TestEngine_UserStreaks(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, ChannelConfig{All: true})

	_, err := engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 3", at(1, 9, 0)))
	require.NoError(t, err)
	_, err = engine.RecordProgress(ctx, progress("!streak #writing worked on chapter 4", at(2, 9, 0)))
	require.NoError(t, err)
	_, err = engine.RecordProgress(ctx, progress("!streak #drawing sketched two figures", at(2, 10, 0)))
	require.NoError(t, err)

	streaks, err := engine.UserStreaks(ctx, "u1", at(3, 12, 0))
	require.NoError(t, err)
	require.Len(t, streaks, 2)
	assert.Equal(t, "#writing", streaks[0].Topic)
	assert.Equal(t, 2, streaks[0].StreakLevel)
	assert.False(t, streaks[0].PostedToday)

	streaks, err = engine.UserStreaks(ctx, "u1", at(4, 12, 0))
	require.NoError(t, err)
	assert.Empty(t, streaks)
}

func TestWithStoreRetry(t *testing.T) {
	StoreRetryBackoff = time.Millisecond
	calls := 0
	v, err := WithStoreRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, &StoreUnavailableError{Op: "x", Err: errors.New("boom")}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)

	calls = 0
	_, err = WithStoreRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, invalid(ErrInvalidMessage, "nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
