// Package bot binds the catalog and the submission dialogue to Telegram
// commands, messages and callbacks.
package bot

import (
	"context"
	"errors"

	"github.com/m3rciful/tunerover/core/telegram/commands"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"
	"github.com/m3rciful/tunerover/core/telegram/middleware"
	"github.com/m3rciful/tunerover/core/telegram/router"
	"github.com/m3rciful/tunerover/internal/catalog"
	"github.com/m3rciful/tunerover/internal/submission"

	tg "github.com/m3rciful/tunerover/core/telegram"
	tele "gopkg.in/telebot.v4"
)

const (
	component = "bot"

	cancelCallback = "add_cancel"
)

// Catalog is the part of the catalog store the handlers use.
type Catalog interface {
	RegisterOrUpdateUser(ctx context.Context, id int64, displayName string) (catalog.User, error)
	GetRole(ctx context.Context, id int64) (catalog.Role, error)
	SetRole(ctx context.Context, id int64, role catalog.Role) error
	PickRandomAlbum(ctx context.Context) (catalog.Album, bool, error)
	CountAlbums(ctx context.Context) (int, error)
}

// Submissions runs the add-album dialogue.
type Submissions interface {
	Active(ctx context.Context, userID int64) bool
	Start(ctx context.Context, userID int64) (submission.Reply, error)
	Cancel(ctx context.Context, userID int64) (submission.Reply, error)
	Handle(ctx context.Context, msg submission.Message) (submission.Reply, error)
}

// CoverFiles resolves a cover reference to a file on disk.
type CoverFiles interface {
	Path(ref string) (string, error)
}

// Bot holds the handlers. Register must be called before Routes.
type Bot struct {
	catalog Catalog
	subs    Submissions
	covers  CoverFiles

	reg       *tg.Registry
	fallbacks fallbacks
}

// New wires the handlers to their services.
func New(cat Catalog, subs Submissions, cov CoverFiles) *Bot {
	return &Bot{catalog: cat, subs: subs, covers: cov}
}

var _ router.Dialogue = (*Bot)(nil)

// Register adds the bot's commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	b.reg = reg

	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: b.handleStart, Description: "Start the bot"}},
		{"/random", commands.Command{Handler: b.handleRandom, Description: "Show a random album", Aliases: []string{surpriseButton}}},
		{"/add", commands.Command{Handler: b.handleAdd, Description: "Add an album (admins)"}},
		{"/cancel", commands.Command{Handler: b.handleCancel, Description: "Cancel the album submission"}},
		{"/promote", commands.Command{
			Handler:     b.roleHandler("/promote", catalog.RoleAdmin),
			Description: "Make a user an admin",
			Usage:       "<user_id>",
			AdminOnly:   true,
		}},
		{"/demote", commands.Command{
			Handler:     b.roleHandler("/demote", catalog.RoleRegular),
			Description: "Make an admin a regular user",
			Usage:       "<user_id>",
			AdminOnly:   true,
		}},
		{"/help", commands.Command{Handler: b.handleHelp, Description: "List commands"}},
	}
	var errs []error
	for _, c := range cmds {
		errs = append(errs, reg.RegisterCommand(c.name, c.cmd))
	}
	errs = append(errs, reg.RegisterCallback(cancelCallback, b.handleCancelButton))
	return errors.Join(errs...)
}

// Routes returns every handler route for the registry passed to Register.
func (b *Bot) Routes() []tg.Route {
	access := middleware.AccessOptions{
		IsAdmin:  b.IsAdmin,
		OnReject: b.fallbacks.AccessDenied(),
	}
	routes := router.CommandRoutes(b.reg, router.CommandRouteOptions{Access: access})
	routes = append(routes, router.MessageRoutes(b, b.reg, router.MessageOptions{
		Access:          access,
		UnknownText:     b.fallbacks.UnknownText(),
		UnknownCommand:  b.fallbacks.UnknownCommand(),
		UnknownPhoto:    b.fallbacks.UnknownPhoto(),
		UnknownDocument: b.fallbacks.UnknownDocument(),
	})...)
	routes = append(routes, router.CallbackRoute(b.reg, router.CallbackOptions{
		NotFound: b.fallbacks.UnknownCallback(),
	}))
	return routes
}

// Middlewares returns the bot specific global middlewares.
func (b *Bot) Middlewares() []tg.Middleware {
	return []tg.Middleware{{Name: "track_users", Use: b.trackUsers}}
}

// IsAdmin is the role check behind admin-only commands.
func (b *Bot) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	role, err := b.catalog.GetRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return role.IsAdmin(), nil
}

// OnRateLimited answers updates dropped by the rate limiter.
func (b *Bot) OnRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgRateLimited})
	}
	return tghelpers.SendText(c, msgRateLimited)
}
