package commands

import (
	"context"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/platform"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// Directory looks up guild and user details on the chat platform.
type Directory interface {
	FetchUsername(ctx context.Context, userID string) (string, error)
	ListChannels(ctx context.Context, guildID string) ([]string, error)
	Roles(ctx context.Context, guildID string) ([]platform.Role, error)
	IsAdmin(ctx context.Context, guildID snowflake.ID, member discord.Member) (bool, error)
}

var _ Directory = (*platform.Discord)(nil)

// Message is an inbound chat message. GuildID and ChannelName are empty
// for direct messages.
type Message struct {
	GuildID     string
	ChannelName string
	UserID      string
	Member      *discord.Member
	Content     string
	At          time.Time
}

func (m Message) inGuild() bool {
	return m.GuildID != ""
}

// Reply is what the bot answers with. Reaction is an optional emoji added
// to the triggering message.
type Reply struct {
	Text     string
	Reaction string
}

type messageHandler func(ctx context.Context, m Message, args string) (Reply, error)

// Router maps prefixed message commands to their handlers.
type Router struct {
	engine   *streaks.Engine
	agg      *streaks.Aggregator
	settings streaks.SettingsStore
	dir      Directory

	prefix              string
	topLimit            int
	announcementChannel string

	handlers map[string]messageHandler
}

type RouterOption func(*Router)

func WithPrefix(p string) RouterOption {
	return func(r *Router) {
		if p != "" {
			r.prefix = p
		}
	}
}

func WithTopLimit(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.topLimit = n
		}
	}
}

func WithAnnouncementChannel(name string) RouterOption {
	return func(r *Router) {
		if name != "" {
			r.announcementChannel = name
		}
	}
}

func NewRouter(engine *streaks.Engine, agg *streaks.Aggregator, settings streaks.SettingsStore, dir Directory, opts ...RouterOption) *Router {
	r := &Router{
		engine:              engine,
		agg:                 agg,
		settings:            settings,
		dir:                 dir,
		prefix:              config.DefaultCommandPrefix,
		topLimit:            config.DefaultTopLimit,
		announcementChannel: config.DefaultAnnouncementChannel,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.handlers = map[string]messageHandler{
		"streak":            r.streak,
		"mystreaks":         r.myStreaks,
		"help":              r.help,
		"timeleft":          r.timeLeft,
		"stats":             r.stats,
		"toggledm":          r.toggleDM,
		"togglementions":    r.toggleMentions,
		"showstreaks":       r.showStreaks,
		"showactivestreaks": r.showActiveStreaks,
		"setrole":           r.setRole,
		"setchannels":       r.setChannels,
		"checksetup":        r.checkSetup,
	}
	return r
}

// Parse splits content into a command name and its arguments. ok is false
// if content is not a command this router knows.
func (r *Router) Parse(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	switch strings.ToLower(content) {
	case "good bot":
		return "goodbot", "", true
	case "bad bot":
		return "badbot", "", true
	}

	if !strings.HasPrefix(content, r.prefix) {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(content, r.prefix))
	if len(fields) == 0 {
		return "", "", false
	}
	name = strings.ToLower(fields[0])
	if _, known := r.handlers[name]; !known {
		return "", "", false
	}
	return name, strings.TrimSpace(streaks.StripCommand(content)), true
}

// Dispatch runs the command in m. name is empty when m is not a command.
// User-correctable failures are returned as a Reply, not an error.
func (r *Router) Dispatch(ctx context.Context, m Message) (name string, reply Reply, err error) {
	name, args, ok := r.Parse(m.Content)
	if !ok {
		return "", Reply{}, nil
	}

	switch name {
	case "goodbot":
		return name, Reply{Text: "thanks 💯"}, nil
	case "badbot":
		return name, Reply{Text: "sorry 😢"}, nil
	}

	reply, err = r.handlers[name](ctx, m, args)
	if err != nil && streaks.IsUserError(err) {
		return name, Reply{Text: err.Error()}, nil
	}
	return name, reply, err
}

const guildOnly = "You can't do that here, you can only run that command in a server."

func text(s string) Reply {
	return Reply{Text: s}
}
