package router

import (
	"log/slog"

	tg "github.com/m3rciful/tunerover/core/telegram"
	"github.com/m3rciful/tunerover/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches inline button presses by their unique key.
// Unknown keys, such as buttons left over from an older release, go to
// opts.NotFound.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	dispatch := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := middleware.ParseCallback(cb)
		name := "callback." + handlerName(key)

		// Stops the client spinner; handlers may still Respond with a toast.
		_ = c.Respond()

		if h, ok := reg.GetCallback(key); ok && h != nil {
			return handled(c, name, h, slog.String("cb_key", key))
		}
		fallback := opts.NotFound
		if fallback == nil {
			fallback = func(tele.Context) error { return nil }
		}
		return handled(c, name, fallback, slog.String("cb_key", key), slog.String("reason", "not_found"))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(dispatch)),
	}
}
