package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/tunerover/core/logger"
)

const (
	readyTimeout  = 30 * time.Second
	readyInterval = 2 * time.Second
	dialTimeout   = 5 * time.Second
)

func init() {
	// Queries use '?' placeholders and are rebound per driver.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connect opens and pings the database and sizes the pool. PostgreSQL is
// waited for up to readyTimeout so the bot can start alongside it.
func Connect(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("db config: %w", err)
	}
	target := cfg.Path
	if cfg.Driver == DriverPostgres {
		target = cfg.Host
		if err := WaitForPostgres(cfg.DSN(), readyTimeout); err != nil {
			logger.DB.Error("db.connect", slog.String("status", "fail"), slog.String("host", target), slog.String("err", err.Error()))
			return nil, fmt.Errorf("database not ready: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.DB.Error("db.connect",
			slog.String("status", "fail"),
			slog.String("driver", cfg.Driver),
			slog.String("target", target),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if cfg.Driver == DriverSQLite && cfg.Path == ":memory:" {
		// Each connection to ":memory:" is a separate empty database.
		pool = 1
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)

	logger.DB.Info("db.connect",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Driver),
		slog.String("target", target),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", pool),
		slog.Duration("duration", took),
	)
	return db, nil
}

// WaitForPostgres pings dsn every readyInterval until it answers or timeout passes.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := pingOnce(dsn)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		}
		time.Sleep(readyInterval)
	}
}

func pingOnce(dsn string) error {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
