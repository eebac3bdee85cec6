package middleware

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/tunerover/core/logger"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"

	gocache "github.com/patrickmn/go-cache"
	tele "gopkg.in/telebot.v4"
)

// seen holds recently logged update ids; the middleware may sit on several
// handler chains and each update is logged once.
var seen = gocache.New(10*time.Second, time.Minute)

func firstSighting(updateID int) bool {
	return seen.Add(strconv.Itoa(updateID), struct{}{}, gocache.DefaultExpiration) == nil
}

// LoggerMiddleware attaches the logging context to the update and emits a
// sampled update.received debug line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() && firstSighting(c.Update().ID) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	kind := UpdateKind(upd)
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", kind),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}

	switch kind {
	case "callback":
		key, payload := ParseCallback(upd.Callback)
		attrs = appendNonEmpty(attrs, "cb_key", logger.SanitizeLimit(key, 128))
		attrs = appendNonEmpty(attrs, "payload", logger.SanitizeLimit(payload, 256))
	case "photo":
		if p := upd.Message.Photo; p != nil {
			attrs = append(attrs, slog.Int64("bytes", p.FileSize))
		}
	case "document":
		if d := upd.Message.Document; d != nil {
			attrs = append(attrs, slog.String("mime", d.MIME), slog.Int64("bytes", d.FileSize))
		}
	case "message":
		attrs = appendNonEmpty(attrs, "payload", logger.SanitizeLimit(c.Text(), 256))
	}
	return attrs
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}

// ParseCallback returns the handler key and payload of a callback.
// Data has the form "\f<unique>|<payload>" unless telebot already split it.
func ParseCallback(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}
