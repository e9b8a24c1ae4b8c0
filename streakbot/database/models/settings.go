package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GuildSettings struct {
	bun.BaseModel `bun:"table:guild_settings,alias:gs"`

	GuildID      string    `bun:"guild_id,pk"`
	AllChannels  bool      `bun:"all_channels,notnull"`
	Channels     []string  `bun:"channels,array"`
	TopRoleID    string    `bun:"top_role_id"`
	ActiveRoleID string    `bun:"active_role_id"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

type UserPreferences struct {
	bun.BaseModel `bun:"table:user_preferences,alias:up"`

	UserID        string    `bun:"user_id,pk"`
	DMOnBreak     bool      `bun:"dm_on_break,notnull"`
	MentionInNews bool      `bun:"mention_in_news,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
