package router

import (
	"log/slog"

	"github.com/m3rciful/tunerover/core/logger"
	tg "github.com/m3rciful/tunerover/core/telegram"
	"github.com/m3rciful/tunerover/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Access middleware.AccessOptions
}

// CommandRoutes binds every registered "/command" to its handler, wrapped with
// recovery, update logging, the admin gate where required, and a summary line.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name, inner := handlerName(cmd), def.Handler
		if def.AdminOnly {
			inner = middleware.AdminOnlyMiddleware(opts.Access)(inner)
		}
		h := func(c tele.Context) error { return handled(c, name, inner) }
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
