package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/tunerover/core/logger"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"
	"github.com/m3rciful/tunerover/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary is the handler.handled line written once per routed update.
type summary struct {
	name   string
	start  time.Time
	status string
	extras []slog.Attr
}

// handled runs h under name and logs its summary.
func handled(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	s := summary{name: name, start: time.Now(), extras: extras}
	tghelpers.WithHandler(c, name)
	err := h(c)
	s.log(c, err)
	return err
}

// skipped logs an update nobody handled.
func skipped(c tele.Context, name string) {
	s := summary{name: name, start: time.Now(), status: "skip"}
	s.log(c, nil)
}

func (s summary) log(c tele.Context, err error) {
	took := time.Since(s.start)
	status, outcome := s.status, "ok"
	switch {
	case err != nil:
		status, outcome = "fail", "fail"
	case status == "":
		status = "ok"
		if denied, _ := c.Get("access_denied").(bool); denied {
			outcome = "denied"
		}
	}
	middleware.ObserveHandler(s.name, status, took)

	msgs, kb := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	}, s.extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(tghelpers.WithHandler(c, s.name), logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// handlerName turns a command or button text into a log-friendly name.
func handlerName(raw string) string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "unknown"
	}
	return strings.ToLower(strings.Join(strings.Fields(raw), "_"))
}

// errorCode prefers an explicit Code() from the chain, then the error type name.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
