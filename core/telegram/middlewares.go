package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/tunerover/core/config"
	"github.com/m3rciful/tunerover/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the global chain: recover, rate limit (when
// configured), update logging, metrics, then the bot's own middlewares in
// order. Bot middlewares therefore see the request context set by logging.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc, extra ...Middleware) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil {
		if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   cfg.RateLimit.ExcludeUpdates,
					OnLimited: onLimited,
				}),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
	for _, mw := range extra {
		if mw.Use != nil {
			mws = append(mws, mw)
		}
	}
	return mws
}
