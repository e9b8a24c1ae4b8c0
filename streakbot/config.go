package streakbot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ellavondegurechaff/streakbot/streakbot/config"
	"github.com/ellavondegurechaff/streakbot/streakbot/scheduler"
)

// LoadConfig reads the TOML file at path, applies .env and environment
// overrides and fills defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Bot     BotConfig     `toml:"bot"`
	DB      DBConfig      `toml:"db"`
	Redis   RedisConfig   `toml:"redis"`
	Streaks StreaksConfig `toml:"streaks"`
	HTTP    HTTPConfig    `toml:"http"`
	Spaces  SpacesConfig  `toml:"spaces"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

type StreaksConfig struct {
	Timezone            string `toml:"timezone"`
	MinDescription      int    `toml:"min_description"`
	AnnouncementChannel string `toml:"announcement_channel"`
	CommandPrefix       string `toml:"command_prefix"`
	NewDayCron          string `toml:"new_day_cron"`
	FirstWarningCron    string `toml:"first_warning_cron"`
	SecondWarningCron   string `toml:"second_warning_cron"`
	TopLimit            int    `toml:"top_limit"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type SpacesConfig struct {
	Key    string `toml:"key"`
	Secret string `toml:"secret"`
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
}

// Enabled reports whether snapshot uploads are configured.
func (s SpacesConfig) Enabled() bool {
	return s.Key != "" && s.Secret != "" && s.Bucket != ""
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
}

func (c *Config) applyDefaults() {
	s := &c.Streaks
	if s.MinDescription <= 0 {
		s.MinDescription = config.DefaultMinDescription
	}
	if s.AnnouncementChannel == "" {
		s.AnnouncementChannel = config.DefaultAnnouncementChannel
	}
	if s.CommandPrefix == "" {
		s.CommandPrefix = config.DefaultCommandPrefix
	}
	if s.NewDayCron == "" {
		s.NewDayCron = config.DefaultNewDayCron
	}
	if s.FirstWarningCron == "" {
		s.FirstWarningCron = config.DefaultFirstWarningCron
	}
	if s.SecondWarningCron == "" {
		s.SecondWarningCron = config.DefaultSecondWarningCron
	}
	if s.TopLimit <= 0 {
		s.TopLimit = config.DefaultTopLimit
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
}

// Validate checks the timezone and cron expressions.
func (c *Config) Validate() error {
	if _, err := c.Streaks.Location(); err != nil {
		return err
	}
	for name, spec := range map[string]string{
		"new_day_cron":        c.Streaks.NewDayCron,
		"first_warning_cron":  c.Streaks.FirstWarningCron,
		"second_warning_cron": c.Streaks.SecondWarningCron,
	} {
		if err := scheduler.ValidateSpec(spec); err != nil {
			return fmt.Errorf("invalid streaks.%s %q: %w", name, spec, err)
		}
	}
	return nil
}

// Location resolves the day-boundary timezone. Empty means server local time.
func (s StreaksConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid streaks.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Specs returns the cron expressions of the daily jobs.
func (s StreaksConfig) Specs() scheduler.Specs {
	return scheduler.Specs{
		NewDay:        s.NewDayCron,
		FirstWarning:  s.FirstWarningCron,
		SecondWarning: s.SecondWarningCron,
	}
}
