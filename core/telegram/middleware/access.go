package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/tunerover/core/logger"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RoleChecker reports whether userID may run admin-only handlers.
type RoleChecker func(ctx context.Context, userID int64) (bool, error)

// AccessOptions defines how admin-only checks behave.
type AccessOptions struct {
	IsAdmin  RoleChecker
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only admins through. Without a checker every
// request is rejected; a failing checker is treated as a rejection.
func AdminOnlyMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			allowed := false
			if sender != nil && opts.IsAdmin != nil {
				ctx := tghelpers.BuildContext(c)
				ok, err := opts.IsAdmin(ctx, sender.ID)
				if err != nil {
					logger.Error(ctx, "tg", "access.check",
						slog.String("status", "fail"),
						slog.Int64("user_id", sender.ID),
						slog.String("err", err.Error()),
					)
				}
				allowed = ok && err == nil
			}
			if !allowed {
				c.Set("access_denied", true)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
