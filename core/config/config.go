// Package config is the configuration shared by every bot built on core:
// transport, logging, rate limiting and metrics.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Run modes for telegram.run_mode. "polling" is accepted as an alias of longpoll.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// 0 means the poller default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig is read by logger.InitLogger.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables
// the endpoint; collectors are still registered.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	Path   string `yaml:"path" envconfig:"METRICS_PATH"`
}

// RateLimitConfig spaces updates per user. ExcludeUpdates lists update kinds
// that bypass the limit.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config is embedded inline by application configs.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load decodes and normalizes a standalone core config.
func Load(path string) (*Config, error) {
	cfg := new(Config)
	if err := Decode(path, cfg); err != nil {
		return nil, err
	}
	if err := Normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals the YAML file at path into out and overlays environment
// variables named by envconfig tags. Fields already set in out act as defaults.
func Decode(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse YAML config: %w", err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}
	return nil
}

// Normalize validates cfg and fills derived defaults in place.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is required")
	}
	if err := cfg.normalizeTransport(); err != nil {
		return err
	}
	if err := cfg.RateLimit.normalize(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Metrics.Listen) != "" && strings.TrimSpace(cfg.Metrics.Path) == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}

func (c *Config) normalizeTransport() error {
	mode := strings.ToLower(strings.TrimSpace(c.Telegram.RunMode))
	if mode == "" || mode == "polling" {
		mode = RunModeLongpoll
	}
	switch mode {
	case RunModeWebhook:
		switch {
		case strings.TrimSpace(c.Webhook.URL) == "":
			return errors.New("webhook.url is required in webhook mode")
		case strings.TrimSpace(c.Webhook.Listen) == "":
			return errors.New("webhook.listen is required in webhook mode")
		case c.Webhook.Port <= 0:
			return errors.New("webhook.port must be positive in webhook mode")
		}
	case RunModeLongpoll:
		if c.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: %s, %s", c.Telegram.RunMode, RunModeWebhook, RunModeLongpoll)
	}
	c.Telegram.RunMode = mode
	return nil
}

func (r *RateLimitConfig) normalize() error {
	for i, v := range r.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind != "" && !slices.Contains(updateKinds, kind) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(updateKinds, ", "))
		}
		r.ExcludeUpdates[i] = kind
	}
	return nil
}
