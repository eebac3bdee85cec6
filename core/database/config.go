package database

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DriverPostgres selects lib/pq against a PostgreSQL server.
	DriverPostgres = "postgres"
	// DriverSQLite selects the pure-Go modernc SQLite driver against a local file.
	DriverSQLite = "sqlite"
)

// Config holds database connection settings.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`

	// Path is the SQLite database file; ":memory:" is accepted for tests.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// BusyTimeoutMS is applied as PRAGMA busy_timeout for SQLite.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" envconfig:"DB_BUSY_TIMEOUT_MS"`
}

// Normalize fills defaults and validates the driver specific fields.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	switch c.Driver {
	case DriverPostgres, "pq":
		c.Driver = DriverPostgres
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
	case DriverSQLite, "sqlite3":
		c.Driver = DriverSQLite
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
		if c.BusyTimeoutMS <= 0 {
			c.BusyTimeoutMS = 5000
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", c.Driver)
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 5
	}
	return nil
}

// DSN renders the driver specific connection string.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		q := url.Values{}
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeoutMS))
		q.Add("_pragma", "foreign_keys(1)")
		if c.Path != ":memory:" {
			q.Add("_pragma", "journal_mode(WAL)")
		}
		return "file:" + c.Path + "?" + q.Encode()
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}
