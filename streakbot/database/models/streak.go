package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Streak is one row per (guild, user, topic). Dates are stored as YYYY-MM-DD
// in the bot's reference timezone.
type Streak struct {
	bun.BaseModel `bun:"table:streaks,alias:s"`

	GuildID      string    `bun:"guild_id,pk"`
	UserID       string    `bun:"user_id,pk"`
	Topic        string    `bun:"topic,pk"`
	Channel      string    `bun:"channel,notnull"`
	StreakLevel  int       `bun:"streak_level,notnull"`
	BestStreak   int       `bun:"best_streak,notnull"`
	LastPostedOn string    `bun:"last_posted_on,notnull"`
	CreatedOn    string    `bun:"created_on,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// StreakEvent is an append-only log of successful streak updates.
type StreakEvent struct {
	bun.BaseModel `bun:"table:streak_events,alias:se"`

	ID          string    `bun:"id,pk"`
	GuildID     string    `bun:"guild_id,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	Topic       string    `bun:"topic,notnull"`
	Channel     string    `bun:"channel,notnull"`
	StreakLevel int       `bun:"streak_level,notnull"`
	Transition  string    `bun:"transition,notnull"`
	PostedOn    string    `bun:"posted_on,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// StreakUser records every user who ever started a streak.
type StreakUser struct {
	bun.BaseModel `bun:"table:streak_users,alias:su"`

	UserID    string    `bun:"user_id,pk"`
	FirstSeen time.Time `bun:"first_seen,notnull,default:current_timestamp"`
}
