package migration

import (
	"strings"
	"time"

	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// MongoStreak is a streak document of the legacy bot.
type MongoStreak struct {
	GuildID     string    `bson:"guildID"`
	UserID      string    `bson:"userID"`
	Topic       string    `bson:"topic"`
	Channel     string    `bson:"channel,omitempty"`
	StreakLevel int       `bson:"streakLevel"`
	BestStreak  int       `bson:"bestStreak"`
	LastUpdated time.Time `bson:"lastUpdated"`
	CreatedAt   time.Time `bson:"createdAt,omitempty"`
}

// MongoGuildSettings is a guild settings document of the legacy bot. A
// channel list of ["*"] means every channel.
type MongoGuildSettings struct {
	GuildID    string   `bson:"guildID"`
	TopRole    string   `bson:"topRole,omitempty"`
	ActiveRole string   `bson:"activeRole,omitempty"`
	Channels   []string `bson:"channels,omitempty"`
}

// MongoUserSettings holds legacy per-user notification toggles.
type MongoUserSettings struct {
	UserID           string `bson:"userID"`
	DMsDisabled      bool   `bson:"dmsDisabled,omitempty"`
	MentionsDisabled bool   `bson:"mentionsDisabled,omitempty"`
}

func convertStreak(ms MongoStreak, days streaks.DayBoundary) (*streaks.Record, bool) {
	if ms.GuildID == "" || ms.UserID == "" || ms.LastUpdated.IsZero() {
		return nil, false
	}
	name := strings.TrimPrefix(strings.TrimSpace(ms.Topic), "#")
	if name == "" {
		name = strings.TrimPrefix(ms.Channel, "#")
	}
	if name == "" {
		return nil, false
	}
	topic := streaks.ChannelTopic(name)

	level := max(ms.StreakLevel, 0)
	last := days.DateOf(ms.LastUpdated)
	created := last.AddDays(-max(level-1, 0))
	if !ms.CreatedAt.IsZero() {
		created = days.DateOf(ms.CreatedAt)
	}

	channel := ms.Channel
	if channel == "" {
		channel = streaks.TopicName(topic)
	}

	return &streaks.Record{
		GuildID:      ms.GuildID,
		UserID:       ms.UserID,
		Topic:        topic,
		Channel:      channel,
		StreakLevel:  level,
		BestStreak:   max(ms.BestStreak, level),
		LastPostedOn: last,
		CreatedOn:    created,
		UpdatedAt:    ms.LastUpdated,
	}, true
}

func convertChannels(channels []string) streaks.ChannelConfig {
	cfg := streaks.ChannelConfig{}
	for _, ch := range channels {
		ch = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
		switch ch {
		case "":
		case "*":
			return streaks.ChannelConfig{All: true}
		default:
			cfg.Channels = append(cfg.Channels, ch)
		}
	}
	return cfg
}
