package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// ErrChannelNotFound is returned when a guild has no text channel with the requested name.
var ErrChannelNotFound = errors.New("channel not found")

// RestAPI is the part of the disgo REST client the adapter calls.
type RestAPI interface {
	AddMemberRole(guildID snowflake.ID, userID snowflake.ID, roleID snowflake.ID, opts ...rest.RequestOpt) error
	RemoveMemberRole(guildID snowflake.ID, userID snowflake.ID, roleID snowflake.ID, opts ...rest.RequestOpt) error
	GetMembers(guildID snowflake.ID, limit int, after snowflake.ID, opts ...rest.RequestOpt) ([]discord.Member, error)
	GetRoles(guildID snowflake.ID, opts ...rest.RequestOpt) ([]discord.Role, error)
	GetGuild(guildID snowflake.ID, withCounts bool, opts ...rest.RequestOpt) (*discord.RestGuild, error)
	GetGuildChannels(guildID snowflake.ID, opts ...rest.RequestOpt) ([]discord.GuildChannel, error)
	CreateGuildChannel(guildID snowflake.ID, guildChannelCreate discord.GuildChannelCreate, opts ...rest.RequestOpt) (discord.GuildChannel, error)
	GetChannel(channelID snowflake.ID, opts ...rest.RequestOpt) (discord.Channel, error)
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	AddReaction(channelID snowflake.ID, messageID snowflake.ID, emoji string, opts ...rest.RequestOpt) error
	GetUser(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.User, error)
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
}

// Discord implements streaks.Platform on top of the Discord REST API.
type Discord struct {
	rest      RestAPI
	usernames *lru.Cache
	channels  *lru.Cache
}

var _ streaks.Platform = (*Discord)(nil)

func NewDiscord(api RestAPI) *Discord {
	usernames, _ := lru.New(config.UsernameCacheSize)
	channels, _ := lru.New(config.UsernameCacheSize)
	return &Discord{
		rest:      api,
		usernames: usernames,
		channels:  channels,
	}
}

func (d *Discord) AssignRole(ctx context.Context, guildID, userID, roleID string) error {
	ids, err := parseIDs(guildID, userID, roleID)
	if err != nil {
		return err
	}
	return d.rest.AddMemberRole(ids[0], ids[1], ids[2], rest.WithCtx(ctx))
}

func (d *Discord) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	ids, err := parseIDs(guildID, userID, roleID)
	if err != nil {
		return err
	}
	return d.rest.RemoveMemberRole(ids[0], ids[1], ids[2], rest.WithCtx(ctx))
}

// MembersWithRole pages through the guild's member list.
func (d *Discord) MembersWithRole(ctx context.Context, guildID, roleID string) ([]string, error) {
	ids, err := parseIDs(guildID, roleID)
	if err != nil {
		return nil, err
	}

	var (
		holders []string
		after   snowflake.ID
	)
	for {
		members, err := d.rest.GetMembers(ids[0], config.MemberFetchPageLimit, after, rest.WithCtx(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		for _, m := range members {
			if hasRole(m.RoleIDs, ids[1]) {
				holders = append(holders, m.User.ID.String())
			}
			d.usernames.Add(m.User.ID.String(), m.User.Username)
		}
		if len(members) < config.MemberFetchPageLimit {
			return holders, nil
		}
		after = members[len(members)-1].User.ID
	}
}

func (d *Discord) FetchUsername(ctx context.Context, userID string) (string, error) {
	if name, ok := d.usernames.Get(userID); ok {
		return name.(string), nil
	}

	id, err := snowflake.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	user, err := d.rest.GetUser(id, rest.WithCtx(ctx))
	if err != nil {
		return "", err
	}
	d.usernames.Add(userID, user.Username)
	return user.Username, nil
}

func (d *Discord) ListChannels(ctx context.Context, guildID string) ([]string, error) {
	channels, err := d.textChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	return names, nil
}

func (d *Discord) SendChannelMessage(ctx context.Context, guildID, channelName, text string) error {
	channels, err := d.textChannels(ctx, guildID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if strings.EqualFold(ch.Name(), channelName) {
			_, err := d.rest.CreateMessage(ch.ID(), discord.NewMessageCreateBuilder().
				SetContent(text).
				Build(), rest.WithCtx(ctx))
			return err
		}
	}
	return fmt.Errorf("%w: #%s in guild %s", ErrChannelNotFound, channelName, guildID)
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, text string) error {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	dm, err := d.rest.CreateDMChannel(id, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = d.rest.CreateMessage(dm.ID(), discord.NewMessageCreateBuilder().
		SetContent(text).
		Build(), rest.WithCtx(ctx))
	return err
}

// ChannelName resolves a channel id to its name. Results are cached.
func (d *Discord) ChannelName(ctx context.Context, channelID snowflake.ID) (string, error) {
	if name, ok := d.channels.Get(channelID); ok {
		return name.(string), nil
	}
	ch, err := d.rest.GetChannel(channelID, rest.WithCtx(ctx))
	if err != nil {
		return "", err
	}
	d.channels.Add(channelID, ch.Name())
	return ch.Name(), nil
}

func (d *Discord) React(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error {
	return d.rest.AddReaction(channelID, messageID, emoji, rest.WithCtx(ctx))
}

func (d *Discord) Reply(ctx context.Context, channelID, messageID snowflake.ID, text string) error {
	_, err := d.rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetContent(text).
		SetMessageReferenceByID(messageID).
		SetAllowedMentions(&discord.AllowedMentions{RepliedUser: true}).
		Build(), rest.WithCtx(ctx))
	return err
}

// Role is a guild role by name.
type Role struct {
	ID   string
	Name string
}

func (d *Discord) Roles(ctx context.Context, guildID string) ([]Role, error) {
	id, err := snowflake.Parse(guildID)
	if err != nil {
		return nil, fmt.Errorf("invalid guild id %q: %w", guildID, err)
	}
	roles, err := d.rest.GetRoles(id, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		// @everyone shares the guild id
		if r.ID == id {
			continue
		}
		out = append(out, Role{ID: r.ID.String(), Name: r.Name})
	}
	return out, nil
}

// IsAdmin reports whether member may change the guild's streak settings:
// the guild owner, or any member whose roles grant Manage Server.
func (d *Discord) IsAdmin(ctx context.Context, guildID snowflake.ID, member discord.Member) (bool, error) {
	guild, err := d.rest.GetGuild(guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return false, err
	}
	if guild.OwnerID == member.User.ID {
		return true, nil
	}

	roles, err := d.rest.GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return false, err
	}
	var perms discord.Permissions
	for _, r := range roles {
		if r.ID == guildID || hasRole(member.RoleIDs, r.ID) {
			perms = perms.Add(r.Permissions)
		}
	}
	return perms.Has(discord.PermissionAdministrator) || perms.Has(discord.PermissionManageGuild), nil
}

// CreateSetupChannel creates the setup text channel and posts text in it.
func (d *Discord) CreateSetupChannel(ctx context.Context, guildID snowflake.ID, name, text string) error {
	ch, err := d.rest.CreateGuildChannel(guildID, discord.GuildTextChannelCreate{
		Name:  name,
		Topic: "Streak bot setup instructions",
	}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("create setup channel: %w", err)
	}

	slog.Info("Setup channel created",
		slog.String("type", "sys"),
		slog.String("guild_id", guildID.String()),
		slog.String("channel_id", ch.ID().String()))

	_, err = d.rest.CreateMessage(ch.ID(), discord.NewMessageCreateBuilder().
		SetContent(text).
		Build(), rest.WithCtx(ctx))
	return err
}

func (d *Discord) textChannels(ctx context.Context, guildID string) ([]discord.GuildChannel, error) {
	id, err := snowflake.Parse(guildID)
	if err != nil {
		return nil, fmt.Errorf("invalid guild id %q: %w", guildID, err)
	}
	channels, err := d.rest.GetGuildChannels(id, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]discord.GuildChannel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type() == discord.ChannelTypeGuildText {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Mention formats userID as a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

func parseIDs(raw ...string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, len(raw))
	for i, s := range raw {
		id, err := snowflake.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func hasRole(roles []snowflake.ID, roleID snowflake.ID) bool {
	for _, r := range roles {
		if r == roleID {
			return true
		}
	}
	return false
}
