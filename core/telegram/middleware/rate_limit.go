package middleware

import (
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/m3rciful/tunerover/core/logger"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware. Exclude holds update
// kinds ("message", "callback", "inline_query") that are never limited;
// photos and documents count as messages.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   []string
	OnLimited tele.HandlerFunc
}

var rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tg",
	Name:      "rate_limited_total",
	Help:      "Updates dropped by the per-user rate limit.",
}, []string{"kind"})

// RateLimitMiddleware drops an update when the same user's previous
// accepted update is younger than opts.Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	// An entry lives for one interval; Add fails while it does.
	recent := gocache.New(opts.Interval, 10*opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if kind == "photo" || kind == "document" {
				kind = "message"
			}
			if slices.Contains(opts.Exclude, kind) {
				return next(c)
			}
			if recent.Add(strconv.FormatInt(user.ID, 10), struct{}{}, gocache.DefaultExpiration) == nil {
				return next(c)
			}

			rateLimited.WithLabelValues(kind).Inc()
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("kind", kind),
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
