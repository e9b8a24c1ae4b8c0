package config

import "time"

// Streak rules
const (
	DefaultMinDescription      = 20
	DefaultTopLimit            = 10
	DefaultCommandPrefix       = "!"
	DefaultAnnouncementChannel = "announcements"
	SetupChannelName           = "streakbot-setup"
)

// Schedules
const (
	DefaultNewDayCron        = "0 0 * * *"
	DefaultFirstWarningCron  = "0 18 * * *"
	DefaultSecondWarningCron = "0 22 * * *"
)

// Colors
const (
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	StreakColor  = 0xFF7A00
)

// Timeouts
const (
	DefaultQueryTimeout     = 10 * time.Second
	BatchQueryTimeout       = 30 * time.Second
	CommandExecutionTimeout = 10 * time.Second
	SlowCommandThreshold    = 2 * time.Second
	ScheduledJobTimeout     = 5 * time.Minute
	PlatformCallTimeout     = 10 * time.Second
	ShutdownTimeout         = 10 * time.Second
)

// Caching and fan-out
const (
	LeaderboardCacheTTL  = 10 * time.Minute
	UsernameCacheSize    = 5000
	RateLimiterCacheSize = 10000
	CommandsPerSecond    = 1
	CommandBurst         = 3
	MaxConcurrentGuilds  = 8
	MigrationBatchSize   = 500
	MigrationParallelism = 4
	LeaderboardPageSize  = 10
	MemberFetchPageLimit = 1000
)
