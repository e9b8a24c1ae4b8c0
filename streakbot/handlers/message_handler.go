package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ellavondegurechaff/streakbot/streakbot/commands"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

const genericFailure = "something went wrong while handling that, please try again later."

// Messenger is the chat surface message commands answer through.
type Messenger interface {
	ChannelName(ctx context.Context, channelID snowflake.ID) (string, error)
	Reply(ctx context.Context, channelID, messageID snowflake.ID, text string) error
	React(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error
}

// Inbound is a received chat message.
type Inbound struct {
	GuildID   *snowflake.ID
	ChannelID snowflake.ID
	MessageID snowflake.ID
	Author    discord.User
	Member    *discord.Member
	Content   string
	// CreatedAt is when the message was sent; zero means now.
	CreatedAt time.Time
}

// MessageListener routes prefixed chat messages to the command router.
type MessageListener struct {
	router  *commands.Router
	chat    Messenger
	limiter *RateLimiter
	obs     CommandObserver
	now     func() time.Time
}

func NewMessageListener(router *commands.Router, chat Messenger, limiter *RateLimiter, obs CommandObserver) *MessageListener {
	return &MessageListener{
		router:  router,
		chat:    chat,
		limiter: limiter,
		obs:     obs,
		now:     time.Now,
	}
}

// Listener adapts l to a disgo event listener.
func (l *MessageListener) Listener() bot.EventListener {
	return bot.NewListenerFunc(func(e *events.MessageCreate) {
		if e.Message.Author.Bot {
			return
		}
		in := Inbound{
			GuildID:   e.GuildID,
			ChannelID: e.ChannelID,
			MessageID: e.MessageID,
			Author:    e.Message.Author,
			Member:    e.Message.Member,
			Content:   e.Message.Content,
			CreatedAt: e.Message.CreatedAt,
		}
		_ = l.Handle(in)
	})
}

// Handle runs the command in in, if any, and sends the reply.
func (l *MessageListener) Handle(in Inbound) error {
	name, _, ok := l.router.Parse(in.Content)
	if !ok {
		return nil
	}
	if l.limiter != nil && !l.limiter.Allow(in.Author.ID.String()) {
		slog.Debug("Command rate limited",
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", in.Author.ID.String()))
		return nil
	}

	inv := Invocation{
		Name:      name,
		UserID:    in.Author.ID.String(),
		UserName:  in.Author.Username,
		ChannelID: in.ChannelID.String(),
	}
	if in.GuildID != nil {
		inv.GuildID = in.GuildID.String()
	}

	return RunWithLogging(inv, l.obs, func(ctx context.Context) error {
		m, err := l.message(ctx, in)
		if err != nil {
			return err
		}

		_, reply, err := l.router.Dispatch(ctx, m)
		if err != nil {
			if replyErr := l.chat.Reply(ctx, in.ChannelID, in.MessageID, genericFailure); replyErr != nil {
				slog.Warn("Failed to send failure reply", slog.String("type", "sys"), slog.Any("error", replyErr))
			}
			return err
		}

		if reply.Text != "" {
			if err := l.chat.Reply(ctx, in.ChannelID, in.MessageID, reply.Text); err != nil {
				return &streaks.PlatformCallError{GuildID: inv.GuildID, Op: "reply", Err: err}
			}
		}
		if reply.Reaction != "" {
			if err := l.chat.React(ctx, in.ChannelID, in.MessageID, reply.Reaction); err != nil {
				return &streaks.PlatformCallError{GuildID: inv.GuildID, Op: "react", Err: err}
			}
		}
		return nil
	})
}

func (l *MessageListener) message(ctx context.Context, in Inbound) (commands.Message, error) {
	at := in.CreatedAt
	if at.IsZero() {
		at = l.now()
	}
	m := commands.Message{
		UserID:  in.Author.ID.String(),
		Content: in.Content,
		At:      at,
	}
	if in.GuildID == nil {
		return m, nil
	}

	m.GuildID = in.GuildID.String()
	name, err := l.chat.ChannelName(ctx, in.ChannelID)
	if err != nil {
		return m, &streaks.PlatformCallError{GuildID: m.GuildID, Op: "channel_name", Err: err}
	}
	m.ChannelName = name

	if in.Member != nil {
		member := *in.Member
		// gateway message members carry no user
		member.User = in.Author
		m.Member = &member
	}
	return m, nil
}
