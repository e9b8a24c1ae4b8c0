package streaks

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Standing is a user's best alive streak at rollover time.
type Standing struct {
	UserID string
	Topic  string
	Level  int
}

// RolloverResult summarises one guild's daily rollover.
type RolloverResult struct {
	RunID      string
	GuildID    string
	ClosingDay Date
	Active     []Standing
	Top        []Standing
	Broken     []*Record
	// Errors holds non-fatal platform failures; the rollover still completed.
	Errors []error
}

// ApplyDailyRollover finalises the day before now's calendar day for guildID:
// streaks without a post on that day are broken, and the active and top
// streaker roles are moved to the users who qualify. Platform failures are
// collected in the result and never abort the rollover. Each store call is
// retried once; if one still fails after stale streaks were broken, the
// partial result is returned alongside the error so Broken is not lost.
func (e *Engine) ApplyDailyRollover(ctx context.Context, guildID string, now time.Time) (*RolloverResult, error) {
	start := time.Now()
	res, err := e.applyDailyRollover(ctx, guildID, now)
	e.observer.ObserveRollover(guildID, time.Since(start), err)
	return res, err
}

func (e *Engine) applyDailyRollover(ctx context.Context, guildID string, now time.Time) (*RolloverResult, error) {
	closing := e.days.DateOf(now).AddDays(-1)
	res := &RolloverResult{
		RunID:      uuid.NewString(),
		GuildID:    guildID,
		ClosingDay: closing,
	}

	// Each store call is retried on its own: BreakStale is not repeatable,
	// a second run finds nothing left to break.
	broken, err := WithStoreRetry(ctx, func(ctx context.Context) ([]*Record, error) {
		broken, err := e.store.BreakStale(ctx, guildID, closing)
		return broken, storeErr("break_stale", err)
	})
	if err != nil {
		return nil, err
	}
	res.Broken = broken

	if e.cache != nil {
		e.cache.Invalidate(ctx, guildID)
	}

	records, err := WithStoreRetry(ctx, func(ctx context.Context) ([]*Record, error) {
		records, err := e.store.ListGuildStreaks(ctx, guildID)
		return records, storeErr("list_guild_streaks", err)
	})
	if err != nil {
		return res, err
	}
	res.Active = standings(records, closing)
	res.Top = topStandings(res.Active)

	settings, err := WithStoreRetry(ctx, func(ctx context.Context) (*GuildSettings, error) {
		settings, err := e.settings.GetGuildSettings(ctx, guildID)
		return settings, storeErr("get_guild_settings", err)
	})
	if err != nil {
		return res, err
	}

	if roleID := settings.Roles.ActiveRoleID; roleID != "" {
		res.Errors = append(res.Errors, e.syncRole(ctx, guildID, roleID, userIDs(res.Active))...)
	}
	if roleID := settings.Roles.TopRoleID; roleID != "" {
		res.Errors = append(res.Errors, e.syncRole(ctx, guildID, roleID, userIDs(res.Top))...)
	}

	e.logger.Info("Daily rollover applied",
		slog.String("type", "sys"),
		slog.String("run_id", res.RunID),
		slog.String("guild_id", guildID),
		slog.String("closing_day", closing.String()),
		slog.Int("active", len(res.Active)),
		slog.Int("top", len(res.Top)),
		slog.Int("broken", len(res.Broken)),
		slog.Int("platform_errors", len(res.Errors)),
	)
	return res, nil
}

// syncRole makes the holders of roleID in guildID exactly want.
func (e *Engine) syncRole(ctx context.Context, guildID, roleID string, want map[string]bool) []error {
	var errs []error

	holders, err := e.platform.MembersWithRole(ctx, guildID, roleID)
	if err != nil {
		errs = append(errs, &PlatformCallError{GuildID: guildID, Op: "members_with_role", Err: err})
	}

	has := make(map[string]bool, len(holders))
	for _, userID := range holders {
		has[userID] = true
		if want[userID] {
			continue
		}
		if err := e.platform.RemoveRole(ctx, guildID, userID, roleID); err != nil {
			errs = append(errs, &PlatformCallError{GuildID: guildID, Op: "remove_role", Err: err})
		}
	}

	for _, userID := range sortedKeys(want) {
		if has[userID] {
			continue
		}
		if err := e.platform.AssignRole(ctx, guildID, userID, roleID); err != nil {
			errs = append(errs, &PlatformCallError{GuildID: guildID, Op: "assign_role", Err: err})
		}
	}

	for _, err := range errs {
		e.logger.Warn("Role update failed",
			slog.String("type", "sys"),
			slog.String("guild_id", guildID),
			slog.String("role_id", roleID),
			slog.Any("error", err))
	}
	return errs
}

// AssignActiveRole gives userID the active streaker role right away, if configured.
func (e *Engine) AssignActiveRole(ctx context.Context, guildID, userID string) error {
	settings, err := e.Settings(ctx, guildID)
	if err != nil {
		return err
	}
	if settings.Roles.ActiveRoleID == "" {
		return nil
	}
	if err := e.platform.AssignRole(ctx, guildID, userID, settings.Roles.ActiveRoleID); err != nil {
		return &PlatformCallError{GuildID: guildID, Op: "assign_role", Err: err}
	}
	return nil
}

// standings returns, per user, the highest level among records posted on or
// after day, ordered by level descending.
func standings(records []*Record, day Date) []Standing {
	best := make(map[string]Standing)
	for _, rec := range records {
		if rec.StreakLevel <= 0 || rec.LastPostedOn.Before(day) {
			continue
		}
		if cur, ok := best[rec.UserID]; !ok || rec.StreakLevel > cur.Level {
			best[rec.UserID] = Standing{UserID: rec.UserID, Topic: rec.Topic, Level: rec.StreakLevel}
		}
	}

	out := make([]Standing, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func topStandings(active []Standing) []Standing {
	if len(active) == 0 {
		return nil
	}
	max := active[0].Level
	var top []Standing
	for _, s := range active {
		if s.Level == max {
			top = append(top, s)
		}
	}
	return top
}

func userIDs(s []Standing) map[string]bool {
	out := make(map[string]bool, len(s))
	for _, st := range s {
		out[st.UserID] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
