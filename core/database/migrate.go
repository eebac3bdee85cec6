package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tunerover/core/logger"
)

// RunMigrations applies the up migrations stored in src under a directory
// named after the driver, e.g. "sqlite/0001_init.up.sql", on db.
func RunMigrations(db *sqlx.DB, cfg Config, src fs.FS) error {
	if db == nil {
		return errors.New("migrate: nil db")
	}
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("migrate config: %w", err)
	}
	files := upFiles(src, cfg.Driver)
	logger.MIG.Debug("mig.resolve", fileAttrs(cfg.Driver, files)...)

	m, err := newMigrator(db, cfg.Driver, src)
	if err != nil {
		logger.MIG.Error("mig.init", slog.String("status", "fail"), slog.String("err", err.Error()))
		return err
	}
	// m is never closed: both drivers would close the shared *sql.DB.

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("mig.apply",
			slog.String("status", "fail"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.Debug("mig.applied", fileAttrs(cfg.Driver, applied)...)
	}
	logger.MIG.Info("mig.summary",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Driver),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func newMigrator(db *sqlx.DB, driver string, src fs.FS) (*migrate.Migrate, error) {
	source, err := iofs.New(src, driver)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	var target migratedb.Driver
	if driver == DriverSQLite {
		target, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	} else {
		target, err = postgres.WithInstance(db.DB, &postgres.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, driver, target)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

func fileAttrs(dir string, files []string) []any {
	preview, truncated := logger.SummarizeStrings(files, 6)
	attrs := []any{slog.String("path", dir), slog.Int("files_total", len(files))}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// upFiles lists "*.up.sql" names under dir, sorted.
func upFiles(src fs.FS, dir string) []string {
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// appliedBetween returns the files whose version prefix is in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
