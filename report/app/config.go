// Package app wires configuration, storage, the report flow and Telegram together.
package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/jakovchuk/socalska-report-bot/core/config"
	coredatabase "github.com/jakovchuk/socalska-report-bot/core/database"
	"github.com/jakovchuk/socalska-report-bot/report/bot"
	"github.com/jakovchuk/socalska-report-bot/report/period"
	"github.com/jakovchuk/socalska-report-bot/report/reminder"
)

// Session store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const defaultTimezone = "America/Los_Angeles"

// ReportConfig configures the questionnaire and where reports go.
type ReportConfig struct {
	ChannelID    string `yaml:"channel_id" envconfig:"CHANNEL_ID"`
	Timezone     string `yaml:"timezone" envconfig:"REPORT_TIMEZONE"`
	CutoffDay    int    `yaml:"cutoff_day" envconfig:"REPORT_CUTOFF_DAY"`
	ReminderHour *int   `yaml:"reminder_hour" envconfig:"REMINDER_HOUR"`
	EditPrompts  *bool  `yaml:"edit_prompts" envconfig:"REPORT_EDIT_PROMPTS"`
}

// SessionConfig selects where in-flight sessions live.
type SessionConfig struct {
	Backend string `yaml:"backend" envconfig:"SESSION_BACKEND"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	URL      string `yaml:"url" envconfig:"REDIS_URL"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
	TTLHours int    `yaml:"ttl_hours" envconfig:"REDIS_SESSION_TTL_HOURS"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Report   ReportConfig        `yaml:"report"`
	Session  SessionConfig       `yaml:"session"`
	Database coredatabase.Config `yaml:"database"`
	Redis    RedisConfig         `yaml:"redis"`

	location *time.Location
}

// CoreConfig implements the runner's config carrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Location returns the report time zone resolved by Normalize.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Channel returns the report destination.
func (c *Config) Channel() bot.Channel {
	return bot.Channel(c.Report.ChannelID)
}

// Load reads the YAML file at path (optional), .env and the environment,
// then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the application sections and fills defaults.
func (c *Config) Normalize() error {
	c.Report.ChannelID = strings.TrimSpace(c.Report.ChannelID)
	if c.Report.ChannelID == "" {
		return fmt.Errorf("report.channel_id (CHANNEL_ID) is required")
	}
	if !c.Channel().Valid() {
		return fmt.Errorf("report.channel_id %q must be a numeric chat id or an @username", c.Report.ChannelID)
	}

	tz := strings.TrimSpace(c.Report.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("report.timezone: %w", err)
	}
	c.Report.Timezone = tz
	c.location = loc

	if c.Report.CutoffDay == 0 {
		c.Report.CutoffDay = period.DefaultCutoffDay
	}
	if c.Report.CutoffDay < 1 || c.Report.CutoffDay > 28 {
		return fmt.Errorf("report.cutoff_day must be within 1..28")
	}
	if c.Report.ReminderHour == nil {
		h := reminder.DefaultHour
		c.Report.ReminderHour = &h
	}
	if h := *c.Report.ReminderHour; h < 0 || h > 23 {
		return fmt.Errorf("report.reminder_hour must be within 0..23")
	}
	if c.Report.EditPrompts == nil {
		on := true
		c.Report.EditPrompts = &on
	}

	backend := strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if backend == "" {
		backend = BackendMemory
	}
	switch backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("session.backend %q needs database.host and database.name", backend)
		}
		if c.Database.Port == "" {
			c.Database.Port = "5432"
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
		if c.Database.MaxConnections <= 0 {
			c.Database.MaxConnections = 5
		}
	case BackendRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			return fmt.Errorf("session.backend %q needs redis.url (REDIS_URL)", backend)
		}
		if c.Redis.TTLHours < 0 {
			return fmt.Errorf("redis.ttl_hours must be >= 0")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, postgres, redis", c.Session.Backend)
	}
	c.Session.Backend = backend
	return nil
}
