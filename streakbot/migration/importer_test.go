package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

type fakeSource struct {
	streaks []MongoStreak
	guilds  []MongoGuildSettings
	users   []MongoUserSettings
	err     error
}

func (f *fakeSource) Streaks(_ context.Context, fn func(MongoStreak) error) error {
	for _, d := range f.streaks {
		if err := fn(d); err != nil {
			return err
		}
	}
	return f.err
}

func (f *fakeSource) GuildSettings(_ context.Context, fn func(MongoGuildSettings) error) error {
	for _, d := range f.guilds {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) UserSettings(_ context.Context, fn func(MongoUserSettings) error) error {
	for _, d := range f.users {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

var march4 = time.Date(2026, time.March, 4, 20, 0, 0, 0, time.UTC)

func TestConvertStreak(t *testing.T) {
	days := streaks.NewDayBoundary(time.UTC)

	tests := []struct {
		name string
		doc  MongoStreak
		ok   bool
		want streaks.Record
	}{
		{
			name: "topic normalized and best raised",
			doc:  MongoStreak{GuildID: "g", UserID: "u", Topic: "#Writing", Channel: "writing", StreakLevel: 5, BestStreak: 3, LastUpdated: march4},
			ok:   true,
			want: streaks.Record{
				GuildID: "g", UserID: "u", Topic: "#writing", Channel: "writing",
				StreakLevel: 5, BestStreak: 5,
				LastPostedOn: streaks.Date{Year: 2026, Month: time.March, Day: 4},
				CreatedOn:    streaks.Date{Year: 2026, Month: time.February, Day: 28},
				UpdatedAt:    march4,
			},
		},
		{
			name: "channel used when topic missing",
			doc:  MongoStreak{GuildID: "g", UserID: "u", Channel: "art", StreakLevel: 1, BestStreak: 9, LastUpdated: march4, CreatedAt: march4.AddDate(-1, 0, 0)},
			ok:   true,
			want: streaks.Record{
				GuildID: "g", UserID: "u", Topic: "#art", Channel: "art",
				StreakLevel: 1, BestStreak: 9,
				LastPostedOn: streaks.Date{Year: 2026, Month: time.March, Day: 4},
				CreatedOn:    streaks.Date{Year: 2025, Month: time.March, Day: 4},
				UpdatedAt:    march4,
			},
		},
		{
			name: "missing user",
			doc:  MongoStreak{GuildID: "g", Topic: "#x", LastUpdated: march4},
		},
		{
			name: "missing date",
			doc:  MongoStreak{GuildID: "g", UserID: "u", Topic: "#x"},
		},
		{
			name: "no topic or channel",
			doc:  MongoStreak{GuildID: "g", UserID: "u", Topic: "#", LastUpdated: march4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := convertStreak(tt.doc, days)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, *rec)
			}
		})
	}
}

func TestConvertChannels(t *testing.T) {
	assert.Equal(t, streaks.ChannelConfig{All: true}, convertChannels([]string{"art", "*"}))
	assert.Equal(t, streaks.ChannelConfig{Channels: []string{"art", "writing"}}, convertChannels([]string{"#Art", " writing ", ""}))
	assert.False(t, convertChannels(nil).Configured())
}

func TestImporter_Run(t *testing.T) {
	ctx := context.Background()
	store := streaks.NewMemoryStore()

	// an already migrated record is kept as a duplicate
	existing := &streaks.Record{GuildID: "g", UserID: "u1", Topic: "#writing", Channel: "writing", StreakLevel: 10, BestStreak: 10}
	require.NoError(t, store.SaveStreak(ctx, nil, existing))

	src := &fakeSource{
		streaks: []MongoStreak{
			{GuildID: "g", UserID: "u1", Topic: "#writing", StreakLevel: 2, LastUpdated: march4},
			{GuildID: "g", UserID: "u2", Topic: "#writing", StreakLevel: 2, LastUpdated: march4},
			{GuildID: "g", UserID: "u3", Topic: "#art", StreakLevel: 7, BestStreak: 8, LastUpdated: march4},
			{GuildID: "g", UserID: "u4", Topic: "#code", StreakLevel: 1, LastUpdated: march4},
			{GuildID: "g", Topic: "#code", LastUpdated: march4},
		},
		guilds: []MongoGuildSettings{
			{GuildID: "g", TopRole: "10", ActiveRole: "11", Channels: []string{"*"}},
			{},
		},
		users: []MongoUserSettings{
			{UserID: "u2", DMsDisabled: true},
		},
	}

	im := NewImporter(src, store, store, streaks.NewDayBoundary(time.UTC))
	im.SetBatchSize(2)
	im.SetParallelism(2)

	report, err := im.Run(ctx)
	require.NoError(t, err)

	byName := map[string]TableStats{}
	for _, tbl := range report.Tables {
		byName[tbl.Name] = *tbl
	}
	assert.Equal(t, TableStats{Name: "streaks", Processed: 5, Imported: 3, Duplicates: 1, Skipped: 1}, byName["streaks"])
	assert.Equal(t, TableStats{Name: "guild_settings", Processed: 2, Imported: 1, Skipped: 1}, byName["guild_settings"])
	assert.Equal(t, TableStats{Name: "user_settings", Processed: 1, Imported: 1}, byName["user_settings"])
	assert.False(t, report.EndTime.Before(report.StartTime))

	kept, err := store.GetStreak(ctx, existing.Key())
	require.NoError(t, err)
	assert.Equal(t, 10, kept.StreakLevel)

	art, err := store.GetStreak(ctx, streaks.Key{GuildID: "g", UserID: "u3", Topic: "#art"})
	require.NoError(t, err)
	assert.Equal(t, 8, art.BestStreak)

	gs, err := store.GetGuildSettings(ctx, "g")
	require.NoError(t, err)
	assert.True(t, gs.Channels.All)
	assert.Equal(t, streaks.RoleConfig{TopRoleID: "10", ActiveRoleID: "11"}, gs.Roles)

	prefs, err := store.GetPreferences(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, prefs.DMOnBreak)
	assert.True(t, prefs.MentionInNews)
}

func TestImporter_SourceFailure(t *testing.T) {
	boom := errors.New("cursor died")
	src := &fakeSource{err: boom}
	store := streaks.NewMemoryStore()

	_, err := NewImporter(src, store, store, streaks.NewDayBoundary(time.UTC)).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "step streaks")
}
