package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ellavondegurechaff/streakbot/streakbot/commands"
	"github.com/ellavondegurechaff/streakbot/streakbot/platform"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks/mock"
)

type fakeChat struct {
	mu        sync.Mutex
	channels  map[snowflake.ID]string
	replies   []string
	reactions []string
}

func (f *fakeChat) ChannelName(_ context.Context, id snowflake.ID) (string, error) {
	name, ok := f.channels[id]
	if !ok {
		return "", errors.New("unknown channel")
	}
	return name, nil
}

func (f *fakeChat) Reply(_ context.Context, _, _ snowflake.ID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeChat) React(_ context.Context, _, _ snowflake.ID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, emoji)
	return nil
}

type noDirectory struct{}

func (noDirectory) FetchUsername(context.Context, string) (string, error)  { return "ada", nil }
func (noDirectory) ListChannels(context.Context, string) ([]string, error) { return nil, nil }
func (noDirectory) Roles(context.Context, string) ([]platform.Role, error) { return nil, nil }
func (noDirectory) IsAdmin(context.Context, snowflake.ID, discord.Member) (bool, error) {
	return false, nil
}

type observed struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (o *observed) ObserveCommand(name string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
	o.errs = append(o.errs, err)
}

func newListener(t *testing.T, limiter *RateLimiter) (*MessageListener, *fakeChat, *observed) {
	t.Helper()
	store := streaks.NewMemoryStore()
	require.NoError(t, store.SetChannels(context.Background(), "1", streaks.ChannelConfig{All: true}))

	days := streaks.NewDayBoundary(time.UTC)
	engine := streaks.NewEngine(store, store, mock.NewMockPlatform(gomock.NewController(t)), days)
	router := commands.NewRouter(engine, streaks.NewAggregator(store, days, nil), store, noDirectory{})

	chat := &fakeChat{channels: map[snowflake.ID]string{10: "writing"}}
	obs := &observed{}
	l := NewMessageListener(router, chat, limiter, obs)
	l.now = func() time.Time { return time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC) }
	return l, chat, obs
}

func inbound(content string) Inbound {
	guildID := snowflake.ID(1)
	return Inbound{
		GuildID:   &guildID,
		ChannelID: 10,
		MessageID: 99,
		Author:    discord.User{ID: 100, Username: "ada"},
		Member:    &discord.Member{},
		Content:   content,
	}
}

func TestMessageListener_Streak(t *testing.T) {
	l, chat, obs := newListener(t, nil)

	require.NoError(t, l.Handle(inbound("!streak wrote two pages of the new chapter")))
	assert.Equal(t, []string{"nice one! Your #writing streak is now 1 day!"}, chat.replies)
	assert.Equal(t, []string{"🔥"}, chat.reactions)
	assert.Equal(t, []string{"streak"}, obs.names)
	assert.Equal(t, []error{nil}, obs.errs)
}

func TestMessageListener_UsesMessageTime(t *testing.T) {
	l, chat, _ := newListener(t, nil)
	l.now = func() time.Time { return time.Date(2026, time.March, 5, 0, 0, 1, 0, time.UTC) }

	first := inbound("!streak wrote two pages of the new chapter")
	first.CreatedAt = time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Handle(first))

	// sent before midnight, handled after it
	late := inbound("!streak outlined the next chapter before bed")
	late.CreatedAt = time.Date(2026, time.March, 4, 23, 59, 59, 0, time.UTC)
	require.NoError(t, l.Handle(late))

	assert.Equal(t, []string{
		"nice one! Your #writing streak is now 1 day!",
		"nice one! Your #writing streak is now 2 days!",
	}, chat.replies)
}

func TestMessageListener_IgnoresChatter(t *testing.T) {
	l, chat, obs := newListener(t, nil)

	require.NoError(t, l.Handle(inbound("morning everyone")))
	assert.Empty(t, chat.replies)
	assert.Empty(t, obs.names)
}

func TestMessageListener_UnknownChannelFails(t *testing.T) {
	l, chat, obs := newListener(t, nil)

	in := inbound("!showstreaks")
	in.ChannelID = 11
	err := l.Handle(in)

	var pe *streaks.PlatformCallError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "channel_name", pe.Op)
	assert.Empty(t, chat.replies)
	require.Len(t, obs.errs, 1)
	assert.Error(t, obs.errs[0])
}

func TestMessageListener_DirectMessage(t *testing.T) {
	l, chat, _ := newListener(t, nil)

	in := inbound("!stats")
	in.GuildID = nil
	in.Member = nil
	require.NoError(t, l.Handle(in))
	assert.Equal(t, []string{"You can't do that here, you can only run that command in a server."}, chat.replies)
}

func TestMessageListener_RateLimited(t *testing.T) {
	l, chat, _ := newListener(t, NewRateLimiter(0.001, 2, 10))

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Handle(inbound("!timeleft")))
	}
	assert.Len(t, chat.replies, 2)
}

func TestRateLimiter_PerUser(t *testing.T) {
	r := NewRateLimiter(0.001, 1, 2)

	assert.True(t, r.Allow("a"))
	assert.False(t, r.Allow("a"))
	assert.True(t, r.Allow("b"))

	// a third user evicts "a", which then starts with a fresh bucket
	assert.True(t, r.Allow("c"))
	assert.True(t, r.Allow("a"))
}

func TestRunWithLogging(t *testing.T) {
	obs := &observed{}
	boom := errors.New("boom")

	err := RunWithLogging(Invocation{Name: "stats", UserID: "1"}, obs, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"stats"}, obs.names)

	require.NoError(t, RunWithLogging(Invocation{Name: "help"}, nil, func(context.Context) error { return nil }))
}
