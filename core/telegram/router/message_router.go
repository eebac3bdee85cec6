package router

import (
	"context"
	"strings"

	tg "github.com/m3rciful/tunerover/core/telegram"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"
	"github.com/m3rciful/tunerover/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Dialogue receives input from users in the middle of a multi-step conversation.
type Dialogue interface {
	Active(ctx context.Context, userID int64) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text, photo and document updates.
type MessageOptions struct {
	// Access wraps admin-only commands reached through a text alias.
	Access          middleware.AccessOptions
	UnknownText     tele.HandlerFunc
	UnknownCommand  tele.HandlerFunc
	UnknownPhoto    tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// MessageRoutes routes plain messages: an active dialogue takes every non-command
// input, then reply keyboard aliases resolve to commands, then fallbacks apply.
func MessageRoutes(dlg Dialogue, reg *tg.Registry, opts MessageOptions) []tg.Route {
	inDialogue := func(c tele.Context) bool {
		if dlg == nil || c.Sender() == nil {
			return false
		}
		return dlg.Active(tghelpers.BuildContext(c), c.Sender().ID)
	}

	textHandler := func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())
		isCommand := strings.HasPrefix(text, "/")

		if !isCommand && inDialogue(c) {
			return handled(c, "dialogue", dlg.Handle)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				h := cmd.Handler
				if cmd.AdminOnly {
					h = middleware.AdminOnlyMiddleware(opts.Access)(h)
				}
				return handled(c, handlerName(key), h)
			}
		}
		if isCommand && opts.UnknownCommand != nil {
			return handled(c, "unknown_command", opts.UnknownCommand)
		}
		if opts.UnknownText != nil {
			return handled(c, "unknown_text", opts.UnknownText)
		}
		skipped(c, "unknown_text")
		return nil
	}

	mediaHandler := func(name string, unknown tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			switch {
			case inDialogue(c):
				return handled(c, "dialogue_"+name, dlg.Handle)
			case unknown != nil:
				return handled(c, "unexpected_"+name, unknown)
			}
			skipped(c, "unexpected_"+name)
			return nil
		}
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(mediaHandler("photo", opts.UnknownPhoto))},
		{Endpoint: tele.OnDocument, Handler: wrap(mediaHandler("document", opts.UnknownDocument))},
	}
}
