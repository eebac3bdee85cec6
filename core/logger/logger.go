// Package logger is the structured slog setup shared by every component:
// one line per event with a stable key order, update correlation taken from
// the context, and output fanned out to stdout and an optional file.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/tunerover/core/buildinfo"
	coreconfig "github.com/m3rciful/tunerover/core/config"
)

var (
	initOnce sync.Once
	stopOnce sync.Once

	out     *sink
	files   []io.Closer
	level   slog.LevelVar
	debugs  sampler
	tracing bool

	// L is the base logger. Until InitLogger runs it discards everything, so
	// packages can log from tests without setup.
	L = slog.New(slog.DiscardHandler)

	// DB logs database connection events.
	DB = L
	// TG logs Telegram transport events.
	TG = L
	// MIG logs schema migration events.
	MIG = L
	// TWire logs command and route wiring.
	TWire = L
)

// settings is what InitLogger derives from the logging config section.
type settings struct {
	format  format
	order   []string
	level   slog.Level
	num     int
	den     int
	profile string
	file    string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{format: formatJSON, order: defaultKeyOrder, level: slog.LevelInfo, num: 1, den: 50, profile: "prod"}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	if keys := strings.TrimSpace(lc.KeysOrder); keys != "" && keys != "default" {
		var order []string
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}
	s.level = parseLevel(lc.Level)
	if ratio := strings.TrimSpace(lc.DebugSample); ratio != "" {
		// "0" or garbage turns sampling off
		s.num, s.den = parseRatio(ratio)
	}
	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && name != "" {
		s.file = filepath.Join(dir, name)
	}
	return s
}

// InitLogger installs the global logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		outputs := []io.Writer{os.Stdout}
		if s.file != "" {
			f, ferr := openLogFile(s.file)
			if ferr != nil {
				err = ferr
				return
			}
			outputs = append(outputs, f)
			files = append(files, f)
		}

		level.Set(s.level)
		debugs.set(s.num, s.den)
		tracing = envFlag("TRACE") || envFlag("LOG_TRACE")
		out = newSink(outputs, 256)

		L = slog.New(newHandler(&level, out, s.format, s.order))
		slog.SetDefault(L)
		DB = Component("db")
		TG = Component("tg")
		MIG = Component("db.migrate")
		TWire = Component("tg.wire")

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("cfg_profile", s.profile),
		)
	})
	return err
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return f, nil
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Shutdown writes pending lines and closes the log file. Safe to call twice.
func Shutdown() error {
	var err error
	stopOnce.Do(func() {
		var errs []error
		if out != nil {
			errs = append(errs, out.Close())
		}
		for _, c := range files {
			errs = append(errs, c.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

// Background is the root context for log calls made outside of an update.
func Background() context.Context {
	return context.Background()
}

// Component returns L scoped with a "component" attribute.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent logs attrs with a leading "event" attribute. A nil logger falls back
// to the one stored in ctx.
func LogEvent(ctx context.Context, log *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if log == nil {
		log = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	log.LogAttrs(ctx, lvl, "", attrs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug thins out per-update debug lines. TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return tracing || debugs.allow()
}
