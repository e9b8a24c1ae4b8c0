package streaks

import (
	"context"
)

// Store persists streak records. It is the only owner of Record state;
// callers must re-read rather than cache records across calls.
type Store interface {
	// GetStreak returns ErrNotFound if no record exists.
	GetStreak(ctx context.Context, key Key) (*Record, error)
	// SaveStreak writes next. prev is the record next was derived from (nil
	// for a new record); if the stored record no longer matches prev the
	// write is rejected with ErrConflict.
	SaveStreak(ctx context.Context, prev, next *Record) error
	ListGuildStreaks(ctx context.Context, guildID string) ([]*Record, error)
	ListUserStreaks(ctx context.Context, userID string) ([]*Record, error)
	// BreakStale zeroes the level of every record in guildID whose last post
	// is before cutoff and returns the records as they were before.
	BreakStale(ctx context.Context, guildID string, cutoff Date) ([]*Record, error)

	AppendEvent(ctx context.Context, ev *Event) error
	StatCount(ctx context.Context, kind StatKind) (int64, error)
	FirstStreakDate(ctx context.Context, guildID string) (Date, error)
}

// SettingsStore holds guild configuration and user preferences.
type SettingsStore interface {
	GetGuildSettings(ctx context.Context, guildID string) (*GuildSettings, error)
	SetChannels(ctx context.Context, guildID string, cfg ChannelConfig) error
	SetTopRole(ctx context.Context, guildID, roleID string) error
	SetActiveRole(ctx context.Context, guildID, roleID string) error
	ListGuildIDs(ctx context.Context) ([]string, error)

	GetPreferences(ctx context.Context, userID string) (UserPreferences, error)
	SavePreferences(ctx context.Context, prefs UserPreferences) error
}

// Platform is the slice of the chat platform the core depends on.
type Platform interface {
	AssignRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	MembersWithRole(ctx context.Context, guildID, roleID string) ([]string, error)
	FetchUsername(ctx context.Context, userID string) (string, error)
	ListChannels(ctx context.Context, guildID string) ([]string, error)
	SendChannelMessage(ctx context.Context, guildID, channelName, text string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// LeaderboardCache optionally caches all-time leaderboards per guild.
// GetTop returns the guild's current generation even on a miss; SetTop only
// stores records if the generation is still gen, and Invalidate advances it.
type LeaderboardCache interface {
	GetTop(ctx context.Context, guildID string, limit int) (records []*Record, gen uint64, ok bool)
	SetTop(ctx context.Context, guildID string, limit int, gen uint64, records []*Record)
	Invalidate(ctx context.Context, guildID string)
}
