package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/streakbot/streakbot/database/models"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// StreakRepository is the PostgreSQL streaks.Store.
type StreakRepository struct {
	*BaseRepository
}

var _ streaks.Store = (*StreakRepository)(nil)

func NewStreakRepository(db *bun.DB) *StreakRepository {
	return &StreakRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *StreakRepository) GetStreak(ctx context.Context, key streaks.Key) (*streaks.Record, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var m models.Streak
	err := r.db.NewSelect().
		Model(&m).
		Where("guild_id = ? AND user_id = ? AND topic = ?", key.GuildID, key.UserID, key.Topic).
		Scan(ctx)
	if err != nil {
		return nil, domainErr(r.HandleError("get", "streak", key, err))
	}
	return toRecord(&m)
}

// SaveStreak writes next only if the stored row still matches prev.
func (r *StreakRepository) SaveStreak(ctx context.Context, prev, next *streaks.Record) error {
	m := fromRecord(next)
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}

	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		var (
			res sql.Result
			err error
		)
		if prev == nil {
			res, err = tx.NewInsert().
				Model(m).
				On("CONFLICT (guild_id, user_id, topic) DO NOTHING").
				Exec(ctx)
		} else {
			res, err = tx.NewUpdate().
				Model(m).
				Column("channel", "streak_level", "best_streak", "last_posted_on", "updated_at").
				WherePK().
				Where("last_posted_on = ?", prev.LastPostedOn.String()).
				Where("streak_level = ?", prev.StreakLevel).
				Exec(ctx)
		}
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return &ConflictError{Entity: "streak", ID: next.Key()}
		}

		_, err = tx.NewInsert().
			Model(&models.StreakUser{UserID: next.UserID, FirstSeen: m.UpdatedAt}).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx)
		return err
	})
	if err != nil {
		if IsConflict(err) {
			return streaks.ErrConflict
		}
		return r.HandleError("save", "streak", next.Key(), err)
	}
	return nil
}

func (r *StreakRepository) ListGuildStreaks(ctx context.Context, guildID string) ([]*streaks.Record, error) {
	return r.list(ctx, "list_guild", "guild_id = ?", guildID)
}

func (r *StreakRepository) ListUserStreaks(ctx context.Context, userID string) ([]*streaks.Record, error) {
	return r.list(ctx, "list_user", "user_id = ?", userID)
}

func (r *StreakRepository) list(ctx context.Context, op, where string, arg string) ([]*streaks.Record, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var rows []*models.Streak
	err := r.db.NewSelect().
		Model(&rows).
		Where(where, arg).
		Order("user_id ASC", "topic ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError(op, "streak", arg, err)
	}
	return toRecords(rows)
}

// BreakStale zeroes every alive streak in guildID last posted before cutoff.
func (r *StreakRepository) BreakStale(ctx context.Context, guildID string, cutoff streaks.Date) ([]*streaks.Record, error) {
	var rows []*models.Streak
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&rows).
			Where("guild_id = ?", guildID).
			Where("streak_level > 0").
			Where("last_posted_on < ?", cutoff.String()).
			For("UPDATE").
			Scan(ctx)
		if err != nil || len(rows) == 0 {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Streak)(nil)).
			Set("streak_level = 0").
			Set("updated_at = ?", time.Now()).
			Where("guild_id = ?", guildID).
			Where("streak_level > 0").
			Where("last_posted_on < ?", cutoff.String()).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, r.HandleError("break_stale", "streak", guildID, err)
	}
	return toRecords(rows)
}

func (r *StreakRepository) AppendEvent(ctx context.Context, ev *streaks.Event) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(&models.StreakEvent{
		ID:          ev.ID,
		GuildID:     ev.GuildID,
		UserID:      ev.UserID,
		Topic:       ev.Topic,
		Channel:     ev.Channel,
		StreakLevel: ev.StreakLevel,
		Transition:  string(ev.Transition),
		PostedOn:    ev.PostedOn.String(),
		CreatedAt:   ev.CreatedAt,
	}).Exec(ctx)
	return r.HandleError("append", "streak_event", ev.ID, err)
}

func (r *StreakRepository) StatCount(ctx context.Context, kind streaks.StatKind) (int64, error) {
	var q *bun.SelectQuery
	switch kind {
	case streaks.StatUsers:
		q = r.db.NewSelect().Model((*models.StreakUser)(nil))
	case streaks.StatStreaks:
		q = r.db.NewSelect().Model((*models.StreakEvent)(nil))
	default:
		return 0, fmt.Errorf("unknown stat kind %q", kind)
	}
	n, err := r.Count(ctx, string(kind), q)
	return int64(n), err
}

func (r *StreakRepository) FirstStreakDate(ctx context.Context, guildID string) (streaks.Date, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var first sql.NullString
	err := r.db.NewSelect().
		Model((*models.Streak)(nil)).
		ColumnExpr("MIN(created_on)").
		Where("guild_id = ?", guildID).
		Scan(ctx, &first)
	if err != nil {
		return streaks.Date{}, r.HandleError("first_date", "streak", guildID, err)
	}
	if !first.Valid {
		return streaks.Date{}, streaks.ErrNotFound
	}
	return streaks.ParseDate(first.String)
}

func domainErr(err error) error {
	switch {
	case IsNotFound(err):
		return streaks.ErrNotFound
	case IsConflict(err):
		return streaks.ErrConflict
	}
	return err
}

func toRecord(m *models.Streak) (*streaks.Record, error) {
	last, err := streaks.ParseDate(m.LastPostedOn)
	if err != nil {
		return nil, fmt.Errorf("streak %s/%s/%s: bad last_posted_on: %w", m.GuildID, m.UserID, m.Topic, err)
	}
	created, err := streaks.ParseDate(m.CreatedOn)
	if err != nil {
		return nil, fmt.Errorf("streak %s/%s/%s: bad created_on: %w", m.GuildID, m.UserID, m.Topic, err)
	}
	return &streaks.Record{
		GuildID:      m.GuildID,
		UserID:       m.UserID,
		Topic:        m.Topic,
		Channel:      m.Channel,
		StreakLevel:  m.StreakLevel,
		BestStreak:   m.BestStreak,
		LastPostedOn: last,
		CreatedOn:    created,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func toRecords(rows []*models.Streak) ([]*streaks.Record, error) {
	out := make([]*streaks.Record, 0, len(rows))
	for _, m := range rows {
		rec, err := toRecord(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func fromRecord(rec *streaks.Record) *models.Streak {
	return &models.Streak{
		GuildID:      rec.GuildID,
		UserID:       rec.UserID,
		Topic:        rec.Topic,
		Channel:      rec.Channel,
		StreakLevel:  rec.StreakLevel,
		BestStreak:   rec.BestStreak,
		LastPostedOn: rec.LastPostedOn.String(),
		CreatedOn:    rec.CreatedOn.String(),
		UpdatedAt:    rec.UpdatedAt,
	}
}
