package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sahilm/fuzzy"

	"github.com/ellavondegurechaff/streakbot/streakbot/platform"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

const notAdmin = "you need the Manage Server permission to do that."

func (r *Router) isAdmin(ctx context.Context, m Message) (bool, error) {
	if m.Member == nil {
		return false, nil
	}
	guildID, err := snowflake.Parse(m.GuildID)
	if err != nil {
		return false, err
	}
	return r.dir.IsAdmin(ctx, guildID, *m.Member)
}

func (r *Router) setRole(ctx context.Context, m Message, args string) (Reply, error) {
	if !m.inGuild() {
		return text(guildOnly), nil
	}
	if ok, err := r.isAdmin(ctx, m); err != nil {
		return Reply{}, err
	} else if !ok {
		return text(notAdmin), nil
	}

	kind, query, _ := strings.Cut(strings.TrimSpace(args), " ")
	kind, query = strings.ToLower(kind), strings.TrimSpace(query)
	if (kind != "top" && kind != "active") || query == "" {
		return text("usage: `!setrole [top/active] [role name/id]`"), nil
	}

	roles, err := r.dir.Roles(ctx, m.GuildID)
	if err != nil {
		return Reply{}, err
	}
	role, ok := MatchRole(roles, query)
	if !ok {
		return text(fmt.Sprintf("I couldn't find a role called \"%s\".", query)), nil
	}

	if kind == "top" {
		err = r.settings.SetTopRole(ctx, m.GuildID, role.ID)
	} else {
		err = r.settings.SetActiveRole(ctx, m.GuildID, role.ID)
	}
	if err != nil {
		return Reply{}, err
	}
	return text(fmt.Sprintf("the %s streaker role is now **%s**.", kind, role.Name)), nil
}

// MatchRole resolves query to a role by id, then by exact name
// (case-insensitive), then by the best fuzzy name match.
func MatchRole(roles []platform.Role, query string) (platform.Role, bool) {
	query = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(query, "<@&"), ">"))
	for _, role := range roles {
		if role.ID == query || strings.EqualFold(role.Name, query) {
			return role, true
		}
	}

	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = strings.ToLower(role.Name)
	}
	matches := fuzzy.Find(strings.ToLower(query), names)
	if len(matches) == 0 {
		return platform.Role{}, false
	}
	return roles[matches[0].Index], true
}

func (r *Router) setChannels(ctx context.Context, m Message, args string) (Reply, error) {
	if !m.inGuild() {
		return text(guildOnly), nil
	}
	if ok, err := r.isAdmin(ctx, m); err != nil {
		return Reply{}, err
	} else if !ok {
		return text(notAdmin), nil
	}

	args = strings.TrimSpace(args)
	if args == "" {
		return text("usage: `!setchannels channel1, channel2, channel3, etc` or `!setchannels *`"), nil
	}
	if args == "*" {
		if err := r.settings.SetChannels(ctx, m.GuildID, streaks.ChannelConfig{All: true}); err != nil {
			return Reply{}, err
		}
		return text("streaks can now be built in all channels."), nil
	}

	existing, err := r.dir.ListChannels(ctx, m.GuildID)
	if err != nil {
		return Reply{}, err
	}
	wanted, unknown := ResolveChannels(existing, args)
	if len(unknown) > 0 {
		return text("I couldn't find these channels: " + strings.Join(unknown, ", ")), nil
	}

	if err := r.settings.SetChannels(ctx, m.GuildID, streaks.ChannelConfig{Channels: wanted}); err != nil {
		return Reply{}, err
	}
	return text("streaks can now be built in: #" + strings.Join(wanted, ", #")), nil
}

// ResolveChannels parses a comma-separated channel list against the
// guild's channels. Unknown entries come back with a did-you-mean hint.
func ResolveChannels(existing []string, list string) (found, unknown []string) {
	lower := make([]string, len(existing))
	for i, name := range existing {
		lower[i] = strings.ToLower(name)
	}

	seen := make(map[string]bool)
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		idx := indexOf(lower, name)
		if idx >= 0 {
			found = append(found, existing[idx])
			continue
		}

		hint := "#" + name
		if matches := fuzzy.Find(name, lower); len(matches) > 0 {
			hint += fmt.Sprintf(" (did you mean #%s?)", existing[matches[0].Index])
		}
		unknown = append(unknown, hint)
	}
	return found, unknown
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func (r *Router) checkSetup(ctx context.Context, m Message, _ string) (Reply, error) {
	if !m.inGuild() {
		return text(guildOnly), nil
	}

	s, err := r.engine.Settings(ctx, m.GuildID)
	if err != nil {
		return Reply{}, err
	}
	channels, err := r.dir.ListChannels(ctx, m.GuildID)
	if err != nil {
		return Reply{}, err
	}
	hasAnnouncements := indexOf(channels, r.announcementChannel) >= 0

	lines := []string{
		check(s.Roles.TopRoleID != "", "The server has a top streak role", "The server does not have a top streak role"),
		check(s.Roles.ActiveRoleID != "", "The server has an active streak role", "The server does not have an active streak role"),
		check(hasAnnouncements, "The server has an "+r.announcementChannel+" channel", "The server does not have an "+r.announcementChannel+" channel"),
		check(s.Channels.Configured(), "The server has at least one streak channel", "The server does not have any streak channels"),
	}
	return text(strings.Join(lines, "\n")), nil
}

func check(ok bool, yes, no string) string {
	if ok {
		return "✅ " + yes
	}
	return "❌ " + no
}

func (r *Router) toggleDM(ctx context.Context, m Message, _ string) (Reply, error) {
	prefs, err := r.settings.GetPreferences(ctx, m.UserID)
	if err != nil {
		return Reply{}, err
	}
	prefs.DMOnBreak = !prefs.DMOnBreak
	if err := r.settings.SavePreferences(ctx, prefs); err != nil {
		return Reply{}, err
	}
	if prefs.DMOnBreak {
		return text("you will now get a direct message when one of your streaks ends 📬"), nil
	}
	return text("you will no longer get direct messages when your streaks end 📭"), nil
}

func (r *Router) toggleMentions(ctx context.Context, m Message, _ string) (Reply, error) {
	prefs, err := r.settings.GetPreferences(ctx, m.UserID)
	if err != nil {
		return Reply{}, err
	}
	prefs.MentionInNews = !prefs.MentionInNews
	if err := r.settings.SavePreferences(ctx, prefs); err != nil {
		return Reply{}, err
	}
	if prefs.MentionInNews {
		return text("you will now be mentioned in announcements 🔔"), nil
	}
	return text("you will no longer be mentioned in announcements 🔕"), nil
}
