package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/streakbot/streakbot/database/models"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// SettingsRepository is the PostgreSQL streaks.SettingsStore.
type SettingsRepository struct {
	*BaseRepository
}

var _ streaks.SettingsStore = (*SettingsRepository)(nil)

func NewSettingsRepository(db *bun.DB) *SettingsRepository {
	return &SettingsRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *SettingsRepository) GetGuildSettings(ctx context.Context, guildID string) (*streaks.GuildSettings, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var m models.GuildSettings
	err := r.db.NewSelect().Model(&m).Where("guild_id = ?", guildID).Scan(ctx)
	if err = r.HandleError("get", "guild_settings", guildID, err); err != nil {
		if IsNotFound(err) {
			return &streaks.GuildSettings{GuildID: guildID}, nil
		}
		return nil, err
	}

	return &streaks.GuildSettings{
		GuildID: m.GuildID,
		Channels: streaks.ChannelConfig{
			All:      m.AllChannels,
			Channels: m.Channels,
		},
		Roles: streaks.RoleConfig{
			TopRoleID:    m.TopRoleID,
			ActiveRoleID: m.ActiveRoleID,
		},
	}, nil
}

func (r *SettingsRepository) SetChannels(ctx context.Context, guildID string, cfg streaks.ChannelConfig) error {
	channels := cfg.Channels
	if channels == nil {
		channels = []string{}
	}
	return r.upsert(ctx, "set_channels", &models.GuildSettings{
		GuildID:     guildID,
		AllChannels: cfg.All,
		Channels:    channels,
	}, "all_channels", "channels")
}

func (r *SettingsRepository) SetTopRole(ctx context.Context, guildID, roleID string) error {
	return r.upsert(ctx, "set_top_role", &models.GuildSettings{GuildID: guildID, TopRoleID: roleID}, "top_role_id")
}

func (r *SettingsRepository) SetActiveRole(ctx context.Context, guildID, roleID string) error {
	return r.upsert(ctx, "set_active_role", &models.GuildSettings{GuildID: guildID, ActiveRoleID: roleID}, "active_role_id")
}

// upsert inserts m or, if the guild exists, updates only columns.
func (r *SettingsRepository) upsert(ctx context.Context, op string, m *models.GuildSettings, columns ...string) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	m.UpdatedAt = time.Now()
	q := r.db.NewInsert().Model(m).On("CONFLICT (guild_id) DO UPDATE")
	for _, col := range append(columns, "updated_at") {
		q = q.Set("? = EXCLUDED.?", bun.Ident(col), bun.Ident(col))
	}
	_, err := q.Exec(ctx)
	return r.HandleError(op, "guild_settings", m.GuildID, err)
}

// ListGuildIDs returns every guild that has settings or streaks.
func (r *SettingsRepository) ListGuildIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var ids []string
	err := r.db.NewRaw("SELECT guild_id FROM guild_settings UNION SELECT guild_id FROM streaks ORDER BY guild_id").
		Scan(ctx, &ids)
	return ids, r.HandleError("list_ids", "guild_settings", nil, err)
}

func (r *SettingsRepository) GetPreferences(ctx context.Context, userID string) (streaks.UserPreferences, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var m models.UserPreferences
	err := r.db.NewSelect().Model(&m).Where("user_id = ?", userID).Scan(ctx)
	if err = r.HandleError("get", "user_preferences", userID, err); err != nil {
		if IsNotFound(err) {
			return streaks.DefaultPreferences(userID), nil
		}
		return streaks.UserPreferences{}, err
	}
	return streaks.UserPreferences{UserID: m.UserID, DMOnBreak: m.DMOnBreak, MentionInNews: m.MentionInNews}, nil
}

func (r *SettingsRepository) SavePreferences(ctx context.Context, prefs streaks.UserPreferences) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().
		Model(&models.UserPreferences{
			UserID:        prefs.UserID,
			DMOnBreak:     prefs.DMOnBreak,
			MentionInNews: prefs.MentionInNews,
			UpdatedAt:     time.Now(),
		}).
		On("CONFLICT (user_id) DO UPDATE").
		Set("dm_on_break = EXCLUDED.dm_on_break").
		Set("mention_in_news = EXCLUDED.mention_in_news").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return r.HandleError("save", "user_preferences", prefs.UserID, err)
}
