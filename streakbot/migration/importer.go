package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/streaks"
)

// TableStats counts the outcome of one import step.
type TableStats struct {
	Name       string `json:"name"`
	Processed  int    `json:"processed"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	Errors     int    `json:"errors"`
}

// Report summarizes an import run.
type Report struct {
	Tables    []*TableStats `json:"tables"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

func (r *Report) table(name string) *TableStats {
	for _, t := range r.Tables {
		if t.Name == name {
			return t
		}
	}
	t := &TableStats{Name: name}
	r.Tables = append(r.Tables, t)
	return t
}

// Importer copies legacy documents into the streak stores.
type Importer struct {
	source      Source
	store       streaks.Store
	settings    streaks.SettingsStore
	days        streaks.DayBoundary
	batchSize   int
	parallelism int64

	mu     sync.Mutex
	report *Report
}

func NewImporter(source Source, store streaks.Store, settings streaks.SettingsStore, days streaks.DayBoundary) *Importer {
	return &Importer{
		source:      source,
		store:       store,
		settings:    settings,
		days:        days,
		batchSize:   config.MigrationBatchSize,
		parallelism: config.MigrationParallelism,
	}
}

// SetBatchSize overrides the number of records written per batch.
func (im *Importer) SetBatchSize(size int) {
	if size > 0 {
		im.batchSize = size
	}
}

// SetParallelism overrides the number of batches written concurrently.
func (im *Importer) SetParallelism(n int) {
	if n > 0 {
		im.parallelism = int64(n)
	}
}

// Run imports guild settings, user settings and streaks, in that order.
func (im *Importer) Run(ctx context.Context) (*Report, error) {
	logProgress("Starting streak migration")
	im.report = &Report{StartTime: time.Now()}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"guild_settings", im.importGuildSettings},
		{"user_settings", im.importUserSettings},
		{"streaks", im.importStreaks},
	}

	for _, s := range steps {
		logProgress(fmt.Sprintf("Starting migration step: %s", s.name))
		if err := s.fn(ctx); err != nil {
			return im.report, fmt.Errorf("migration failed at step %s: %w", s.name, err)
		}
		logProgress(fmt.Sprintf("Completed migration step: %s", s.name))
	}

	im.report.EndTime = time.Now()
	im.logFinalStats()
	return im.report, nil
}

func (im *Importer) importGuildSettings(ctx context.Context) error {
	return im.source.GuildSettings(ctx, func(doc MongoGuildSettings) error {
		if doc.GuildID == "" {
			im.count("guild_settings", func(t *TableStats) { t.Processed++; t.Skipped++ })
			return nil
		}

		var err error
		if cfg := convertChannels(doc.Channels); cfg.Configured() {
			err = errors.Join(err, im.settings.SetChannels(ctx, doc.GuildID, cfg))
		}
		if doc.TopRole != "" {
			err = errors.Join(err, im.settings.SetTopRole(ctx, doc.GuildID, doc.TopRole))
		}
		if doc.ActiveRole != "" {
			err = errors.Join(err, im.settings.SetActiveRole(ctx, doc.GuildID, doc.ActiveRole))
		}
		im.record("guild_settings", doc.GuildID, err)
		return nil
	})
}

func (im *Importer) importUserSettings(ctx context.Context) error {
	return im.source.UserSettings(ctx, func(doc MongoUserSettings) error {
		if doc.UserID == "" {
			im.count("user_settings", func(t *TableStats) { t.Processed++; t.Skipped++ })
			return nil
		}
		err := im.settings.SavePreferences(ctx, streaks.UserPreferences{
			UserID:        doc.UserID,
			DMOnBreak:     !doc.DMsDisabled,
			MentionInNews: !doc.MentionsDisabled,
		})
		im.record("user_settings", doc.UserID, err)
		return nil
	})
}

func (im *Importer) importStreaks(ctx context.Context) error {
	sem := semaphore.NewWeighted(im.parallelism)
	g, gctx := errgroup.WithContext(ctx)

	flush := func(batch []*streaks.Record) error {
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			for _, rec := range batch {
				im.saveStreak(gctx, rec)
			}
			return nil
		})
		return nil
	}

	var batch []*streaks.Record
	err := im.source.Streaks(ctx, func(doc MongoStreak) error {
		rec, ok := convertStreak(doc, im.days)
		if !ok {
			im.count("streaks", func(t *TableStats) { t.Processed++; t.Skipped++ })
			return nil
		}
		batch = append(batch, rec)
		if len(batch) < im.batchSize {
			return nil
		}
		full := batch
		batch = nil
		return flush(full)
	})
	if err == nil && len(batch) > 0 {
		err = flush(batch)
	}
	return errors.Join(err, g.Wait())
}

func (im *Importer) saveStreak(ctx context.Context, rec *streaks.Record) {
	err := im.store.SaveStreak(ctx, nil, rec)
	if errors.Is(err, streaks.ErrConflict) {
		im.count("streaks", func(t *TableStats) { t.Processed++; t.Duplicates++ })
		return
	}
	im.record("streaks", rec.GuildID+"/"+rec.UserID+"/"+rec.Topic, err)
}

func (im *Importer) record(table, id string, err error) {
	if err != nil {
		slog.Warn("Failed to import record",
			slog.String("type", "db"),
			slog.String("table", table),
			slog.String("id", id),
			slog.Any("error", err))
		im.count(table, func(t *TableStats) { t.Processed++; t.Errors++ })
		return
	}
	im.count(table, func(t *TableStats) { t.Processed++; t.Imported++ })
}

func (im *Importer) count(table string, fn func(*TableStats)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	fn(im.report.table(table))
}

func (im *Importer) logFinalStats() {
	for _, t := range im.report.Tables {
		slog.Info("Migration step summary",
			slog.String("service", "StreakBot Migration"),
			slog.String("table", t.Name),
			slog.Int("processed", t.Processed),
			slog.Int("imported", t.Imported),
			slog.Int("duplicates", t.Duplicates),
			slog.Int("skipped", t.Skipped),
			slog.Int("errors", t.Errors))
	}
	logProgress(fmt.Sprintf("Migration completed in %s", im.report.EndTime.Sub(im.report.StartTime).Round(time.Millisecond)))
}

func logProgress(message string) {
	slog.Info(message, "service", "StreakBot Migration")
}
