// Package config loads the bot configuration: the shared core sections plus
// storage, covers, submission and redis settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/tunerover/core/config"
	coredatabase "github.com/m3rciful/tunerover/core/database"
)

const (
	// SessionBackendMemory keeps drafts in process memory.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps drafts in Redis.
	SessionBackendRedis = "redis"
)

// CoversConfig controls where and how cover images are stored.
type CoversConfig struct {
	Dir       string `yaml:"dir" envconfig:"COVERS_DIR"`
	MaxWidth  int    `yaml:"max_width" envconfig:"COVERS_MAX_WIDTH"`
	MaxHeight int    `yaml:"max_height" envconfig:"COVERS_MAX_HEIGHT"`
	Quality   int    `yaml:"quality" envconfig:"COVERS_QUALITY"`
	MaxBytes  int64  `yaml:"max_bytes" envconfig:"COVERS_MAX_BYTES"`
}

// SubmissionConfig tunes the add-album dialogue.
type SubmissionConfig struct {
	CollectLinks   bool          `yaml:"collect_links" envconfig:"SUBMISSION_COLLECT_LINKS"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" envconfig:"SUBMISSION_IDLE_TIMEOUT"`
	SessionBackend string        `yaml:"session_backend" envconfig:"SUBMISSION_SESSION_BACKEND"`
}

// RedisConfig is used when submission.session_backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// Config is the complete bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Covers     CoversConfig        `yaml:"covers"`
	Submission SubmissionConfig    `yaml:"submission"`
	Redis      RedisConfig         `yaml:"redis"`
}

// CoreConfig exposes the embedded core section to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Defaults returns the values applied before the file and env are read.
func Defaults() Config {
	return Config{
		Database: coredatabase.Config{
			Driver: coredatabase.DriverSQLite,
			Path:   "data/tunerover.db",
		},
		Covers: CoversConfig{Dir: "data/covers"},
		Submission: SubmissionConfig{
			CollectLinks:   true,
			IdleTimeout:    30 * time.Minute,
			SessionBackend: SessionBackendMemory,
		},
		Redis: RedisConfig{Prefix: "tunerover:draft:"},
	}
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills remaining defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Covers.Dir) == "" {
		return fmt.Errorf("covers.dir is required")
	}
	if c.Covers.Quality < 0 || c.Covers.Quality > 100 {
		return fmt.Errorf("covers.quality must be within 0..100")
	}

	if c.Submission.IdleTimeout < 0 {
		return fmt.Errorf("submission.idle_timeout must be >= 0")
	}
	backend := strings.ToLower(strings.TrimSpace(c.Submission.SessionBackend))
	if backend == "" {
		backend = SessionBackendMemory
	}
	switch backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when submission.session_backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid submission.session_backend %q; allowed: memory, redis", c.Submission.SessionBackend)
	}
	c.Submission.SessionBackend = backend
	return nil
}
