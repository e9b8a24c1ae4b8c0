package streaks

import (
	"time"
)

// Record is the streak of one user on one topic in one guild.
// A StreakLevel of zero marks a streak broken by a rollover.
type Record struct {
	GuildID      string
	UserID       string
	Topic        string
	Channel      string
	StreakLevel  int
	BestStreak   int
	LastPostedOn Date
	CreatedOn    Date
	UpdatedAt    time.Time
}

// Key identifies a Record.
type Key struct {
	GuildID string
	UserID  string
	Topic   string
}

func (r *Record) Key() Key {
	return Key{GuildID: r.GuildID, UserID: r.UserID, Topic: r.Topic}
}

// State is the lifecycle position of a streak relative to a given day.
type State int

const (
	NoStreak State = iota
	Active
	Stale
	Broken
)

func (s State) String() string {
	switch s {
	case NoStreak:
		return "none"
	case Active:
		return "active"
	case Stale:
		return "stale"
	case Broken:
		return "broken"
	default:
		return "unknown"
	}
}

// StateOn classifies rec relative to the calendar day today.
func StateOn(rec *Record, today Date) State {
	if rec == nil {
		return NoStreak
	}
	if rec.StreakLevel <= 0 {
		return Broken
	}
	switch gap := today.DaysSince(rec.LastPostedOn); {
	case gap <= 0:
		return Active
	case gap == 1:
		return Stale
	default:
		return Broken
	}
}

// Alive reports whether rec can still be continued today.
func Alive(rec *Record, today Date) bool {
	s := StateOn(rec, today)
	return s == Active || s == Stale
}

// Progress is one inbound "!streak" message.
type Progress struct {
	GuildID     string
	UserID      string
	ChannelName string
	Text        string
	At          time.Time
}

// Event is an append-only log entry of a successful streak update.
type Event struct {
	ID          string
	GuildID     string
	UserID      string
	Topic       string
	Channel     string
	StreakLevel int
	Transition  Transition
	PostedOn    Date
	CreatedAt   time.Time
}

// ChannelConfig lists the channels a guild allows streaks in.
type ChannelConfig struct {
	All      bool
	Channels []string
}

// Allows reports whether streaks may be built in channel.
func (c ChannelConfig) Allows(channel string) bool {
	if c.All {
		return true
	}
	for _, ch := range c.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// Configured reports whether at least one channel is eligible.
func (c ChannelConfig) Configured() bool {
	return c.All || len(c.Channels) > 0
}

// RoleConfig holds the role ids awarded at rollover. Empty means unset.
type RoleConfig struct {
	TopRoleID    string
	ActiveRoleID string
}

// GuildSettings aggregates a guild's configuration.
type GuildSettings struct {
	GuildID  string
	Channels ChannelConfig
	Roles    RoleConfig
}

// UserPreferences are per-user notification toggles.
type UserPreferences struct {
	UserID        string
	DMOnBreak     bool
	MentionInNews bool
}

// DefaultPreferences is used for users who never toggled anything.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{UserID: userID, DMOnBreak: true, MentionInNews: true}
}

// StatKind selects a global counter.
type StatKind string

const (
	StatUsers   StatKind = "users"
	StatStreaks StatKind = "streaks"
)
