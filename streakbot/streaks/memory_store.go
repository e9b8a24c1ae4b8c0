package streaks

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store and SettingsStore. It backs the
// -memory-store mode and the package tests.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[Key]*Record
	events   []*Event
	users    map[string]bool
	settings map[string]*GuildSettings
	prefs    map[string]UserPreferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[Key]*Record),
		users:    make(map[string]bool),
		settings: make(map[string]*GuildSettings),
		prefs:    make(map[string]UserPreferences),
	}
}

func (m *MemoryStore) GetStreak(_ context.Context, key Key) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) SaveStreak(_ context.Context, prev, next *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := next.Key()
	cur, ok := m.records[key]
	switch {
	case prev == nil && ok:
		return ErrConflict
	case prev != nil && (!ok || cur.LastPostedOn != prev.LastPostedOn || cur.StreakLevel != prev.StreakLevel):
		return ErrConflict
	}

	cp := *next
	m.records[key] = &cp
	m.users[next.UserID] = true
	return nil
}

func (m *MemoryStore) ListGuildStreaks(_ context.Context, guildID string) ([]*Record, error) {
	return m.filter(func(r *Record) bool { return r.GuildID == guildID }), nil
}

func (m *MemoryStore) ListUserStreaks(_ context.Context, userID string) ([]*Record, error) {
	return m.filter(func(r *Record) bool { return r.UserID == userID }), nil
}

func (m *MemoryStore) filter(keep func(*Record) bool) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Record
	for _, rec := range m.records {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

func (m *MemoryStore) BreakStale(_ context.Context, guildID string, cutoff Date) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var broken []*Record
	for _, rec := range m.records {
		if rec.GuildID != guildID || rec.StreakLevel <= 0 || !rec.LastPostedOn.Before(cutoff) {
			continue
		}
		cp := *rec
		broken = append(broken, &cp)
		rec.StreakLevel = 0
	}
	return broken, nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ev
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemoryStore) StatCount(_ context.Context, kind StatKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind == StatUsers {
		return int64(len(m.users)), nil
	}
	return int64(len(m.events)), nil
}

func (m *MemoryStore) FirstStreakDate(_ context.Context, guildID string) (Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first Date
	for _, rec := range m.records {
		if rec.GuildID != guildID {
			continue
		}
		if first.IsZero() || rec.CreatedOn.Before(first) {
			first = rec.CreatedOn
		}
	}
	if first.IsZero() {
		return Date{}, ErrNotFound
	}
	return first, nil
}

func (m *MemoryStore) GetGuildSettings(_ context.Context, guildID string) (*GuildSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settings[guildID]
	if !ok {
		return &GuildSettings{GuildID: guildID}, nil
	}
	cp := *s
	cp.Channels.Channels = append([]string(nil), s.Channels.Channels...)
	return &cp, nil
}

func (m *MemoryStore) guild(guildID string) *GuildSettings {
	s, ok := m.settings[guildID]
	if !ok {
		s = &GuildSettings{GuildID: guildID}
		m.settings[guildID] = s
	}
	return s
}

func (m *MemoryStore) SetChannels(_ context.Context, guildID string, cfg ChannelConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.guild(guildID).Channels = ChannelConfig{All: cfg.All, Channels: append([]string(nil), cfg.Channels...)}
	return nil
}

func (m *MemoryStore) SetTopRole(_ context.Context, guildID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.guild(guildID).Roles.TopRoleID = roleID
	return nil
}

func (m *MemoryStore) SetActiveRole(_ context.Context, guildID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.guild(guildID).Roles.ActiveRoleID = roleID
	return nil
}

func (m *MemoryStore) ListGuildIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	for id := range m.settings {
		seen[id] = true
	}
	for key := range m.records {
		seen[key.GuildID] = true
	}
	return sortedKeys(seen), nil
}

func (m *MemoryStore) GetPreferences(_ context.Context, userID string) (UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return DefaultPreferences(userID), nil
}

func (m *MemoryStore) SavePreferences(_ context.Context, prefs UserPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prefs[prefs.UserID] = prefs
	return nil
}
