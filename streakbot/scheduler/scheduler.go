package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	JobNewDay        = "new_day"
	JobFirstWarning  = "first_warning"
	JobSecondWarning = "second_warning"
)

// Runner performs the work behind the daily jobs.
type Runner interface {
	NewDay(ctx context.Context, now time.Time) error
	Warn(ctx context.Context, now time.Time) error
}

// Specs holds the five-field cron expressions of the daily jobs.
type Specs struct {
	NewDay        string
	FirstWarning  string
	SecondWarning string
}

// Job is one named cron entry.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context, now time.Time) error
}

// DailyJobs returns the new-day rollover and the two pre-cutoff warnings.
func DailyJobs(r Runner, specs Specs) []Job {
	return []Job{
		{Name: JobNewDay, Spec: specs.NewDay, Run: r.NewDay},
		{Name: JobFirstWarning, Spec: specs.FirstWarning, Run: r.Warn},
		{Name: JobSecondWarning, Spec: specs.SecondWarning, Run: r.Warn},
	}
}

// Entry describes a registered job.
type Entry struct {
	Name string
	Next time.Time
}

// SchedulerState owns the process-wide set of daily jobs. Reset replaces
// every registered job at once, so a reconnect never leaves duplicates.
type SchedulerState struct {
	mu      sync.Mutex
	loc     *time.Location
	jobs    []Job
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	cron  *cron.Cron
	names map[cron.EntryID]string
}

func New(loc *time.Location, timeout time.Duration, jobs ...Job) *SchedulerState {
	if loc == nil {
		loc = time.Local
	}
	return &SchedulerState{
		loc:     loc,
		jobs:    jobs,
		timeout: timeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// Reset cancels the currently scheduled jobs and registers all jobs again.
// If any spec is invalid nothing is replaced.
func (s *SchedulerState) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	names := make(map[cron.EntryID]string, len(s.jobs))
	for _, job := range s.jobs {
		job := job
		id, err := next.AddFunc(job.Spec, func() { s.run(job) })
		if err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", job.Spec, job.Name, err)
		}
		names[id] = job.Name
	}

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.cron, s.names = next, names
	s.cron.Start()

	s.logger.Info("Scheduled jobs registered",
		slog.String("type", "sys"),
		slog.Int("jobs", len(names)),
		slog.String("timezone", s.loc.String()))
	return nil
}

// Stop cancels all jobs and waits for running ones to return.
func (s *SchedulerState) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron, s.names = nil, nil
}

// Entries lists the registered jobs ordered by name.
func (s *SchedulerState) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	var out []Entry
	for _, e := range s.cron.Entries() {
		out = append(out, Entry{Name: s.names[e.ID], Next: e.Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *SchedulerState) run(job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx, s.now().In(s.loc))
	if err != nil {
		s.logger.Error("Scheduled job failed",
			slog.String("type", "sys"),
			slog.String("job", job.Name),
			slog.Duration("took", time.Since(start)),
			slog.Any("error", err))
		return
	}
	s.logger.Info("Scheduled job completed",
		slog.String("type", "sys"),
		slog.String("job", job.Name),
		slog.String("status", "success"),
		slog.Duration("took", time.Since(start)))
}

// ValidateSpec reports whether spec is a valid five-field cron expression.
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, append([]any{slog.String("type", "sys")}, keysAndValues...)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append([]any{slog.String("type", "sys"), slog.Any("error", err)}, keysAndValues...)...)
}
