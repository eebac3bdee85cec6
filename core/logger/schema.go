package logger

import (
	"log/slog"
	"strings"
)

// Level names as printed in the "level" key.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	}
	return LevelError
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// status values are lowercased; unknown ones pass through.
func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// outcomes of handlers and of album submissions. Unknown outcomes are dropped
// so dashboards keep a closed set.
var outcomes = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
	"canceled":     "cancelled",
	"denied":       "denied",
	"expired":      "expired",
	"ignored":      "ignored",
	"advanced":     "advanced",
	"invalid":      "invalid",
	"committed":    "committed",
	"duplicate":    "duplicate",
}

func normalizeOutcome(s string) (string, bool) {
	v, ok := outcomes[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "op", "cb_key", "outcome", "duration_ms",
	"messages", "kb",
	"step", "next_step", "role",
	"album_id", "title", "artist", "year", "cover_ref", "bytes", "mime",
	"count", "payload", "lang", "username",
	"mode", "listen", "public_url", "http_code",
	"driver", "db", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
}
