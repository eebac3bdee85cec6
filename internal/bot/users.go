package bot

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/tunerover/core/logger"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// trackUsers registers every human sender and refreshes the display name.
// A store failure is logged and the update is still handled.
func (b *Bot) trackUsers(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if u := c.Sender(); u != nil && !u.IsBot {
			ctx := tghelpers.BuildContext(c)
			if _, err := b.catalog.RegisterOrUpdateUser(ctx, u.ID, DisplayName(u)); err != nil {
				logger.Warn(ctx, component, "user.track",
					slog.String("status", "fail"),
					slog.Int64("user_id", u.ID),
					slog.String("err", err.Error()),
				)
			}
		}
		return next(c)
	}
}

// DisplayName picks the best human readable name Telegram gives us.
func DisplayName(u *tele.User) string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}
