// Package config loads the settings every bot built on core shares.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// HTTPRetries bounds transport-level retries of Telegram API calls.
	HTTPRetries int `yaml:"http_retries" envconfig:"TELEGRAM_HTTP_RETRIES"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"PORT"`
	// Secret is the path segment Telegram posts updates to.
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile   string `yaml:"bot_file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// Run modes for telegram.run_mode.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// MaxLongPollTimeoutSeconds keeps a poll below the HTTP client timeout.
const MaxLongPollTimeoutSeconds = 60

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback = "callback"
	UpdateMessage  = "message"
)

// RateLimitConfig throttles each user to one update per IntervalMS.
// Zero disables the limit. ExcludeUpdates lists update kinds that bypass it.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

var secretRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8,256}$`)

// Decode fills target from an optional YAML file, an optional .env file and
// the process environment, in that order of increasing precedence.
// A missing file is not an error; deployments may rely on the environment alone.
func Decode(path string, target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, target); err != nil {
				return fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}
	if err := envconfig.Process("", target); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg in place and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := normalizeTelegram(&cfg.Telegram); err != nil {
		return err
	}
	if cfg.Telegram.RunMode == RunModeWebhook {
		if err := normalizeWebhook(&cfg.Webhook); err != nil {
			return err
		}
	}
	return normalizeRateLimit(&cfg.RateLimit)
}

func normalizeTelegram(tc *TelegramConfig) error {
	tc.Token = strings.TrimSpace(tc.Token)
	if tc.Token == "" {
		return errors.New("telegram.token (BOT_TOKEN) is required")
	}
	if tc.HTTPRetries < 0 {
		return errors.New("telegram.http_retries must be >= 0")
	}

	switch mode := strings.ToLower(strings.TrimSpace(tc.RunMode)); mode {
	case "", "polling", RunModeLongpoll:
		tc.RunMode = RunModeLongpoll
	case RunModeWebhook:
		tc.RunMode = mode
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", tc.RunMode)
	}

	if tc.LongPollTimeoutSeconds < 0 || tc.LongPollTimeoutSeconds > MaxLongPollTimeoutSeconds {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be within 0..%d", MaxLongPollTimeoutSeconds)
	}
	return nil
}

func normalizeWebhook(wc *WebhookConfig) error {
	if strings.TrimSpace(wc.Listen) == "" {
		wc.Listen = "0.0.0.0"
	}
	if wc.Port == 0 {
		wc.Port = 5000
	}
	if wc.Port < 0 || wc.Port > 65535 {
		return fmt.Errorf("webhook.port %d is out of range", wc.Port)
	}
	if !secretRe.MatchString(wc.Secret) {
		return errors.New("webhook.secret (WEBHOOK_SECRET) must be 8-256 characters of [A-Za-z0-9_-]")
	}
	wc.URL = strings.TrimRight(strings.TrimSpace(wc.URL), "/")
	if wc.URL != "" && !strings.HasPrefix(wc.URL, "https://") {
		return fmt.Errorf("webhook.url %q must use https", wc.URL)
	}
	return nil
}

func normalizeRateLimit(rc *RateLimitConfig) error {
	if rc.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	kinds := rc.ExcludeUpdates[:0]
	for _, v := range rc.ExcludeUpdates {
		switch key := strings.ToLower(strings.TrimSpace(v)); key {
		case "":
		case UpdateCallback, UpdateMessage:
			kinds = append(kinds, key)
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
	}
	rc.ExcludeUpdates = kinds
	return nil
}
