package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/m3rciful/tunerover/core/buildinfo"
	"github.com/m3rciful/tunerover/core/logger"
	"github.com/m3rciful/tunerover/core/telegram/callbacks"
	"github.com/m3rciful/tunerover/core/telegram/format"
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"
	"github.com/m3rciful/tunerover/core/telegram/keyboard"
	"github.com/m3rciful/tunerover/internal/catalog"
	"github.com/m3rciful/tunerover/internal/metrics"
	"github.com/m3rciful/tunerover/internal/submission"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) handleStart(c tele.Context) error {
	return tghelpers.SendText(c, msgGreeting, &tele.SendOptions{
		ReplyMarkup: keyboard.ReplyButtons([]string{surpriseButton}),
	})
}

// handleRandom serves both /random and the "Surprise me" keyboard button.
// The button press itself is deleted to keep the chat tidy.
func (b *Bot) handleRandom(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if !strings.HasPrefix(c.Text(), "/") {
		tghelpers.DeleteIncoming(c)
	}

	album, ok, err := b.catalog.PickRandomAlbum(ctx)
	if err != nil {
		metrics.RandomPicksTotal.WithLabelValues("error").Inc()
		return errors.Join(err, tghelpers.SendText(c, msgTryAgain))
	}
	if !ok {
		metrics.RandomPicksTotal.WithLabelValues("empty").Inc()
		return tghelpers.SendText(c, msgEmptyCatalog)
	}
	metrics.RandomPicksTotal.WithLabelValues("hit").Inc()

	caption := Caption(album)
	links := keyboard.LinkRow(
		keyboard.LinkBtn{Text: "Apple Music", URL: format.HTTPLink(album.ItunesLink)},
		keyboard.LinkBtn{Text: "Listen", URL: format.HTTPLink(album.StreamingLink)},
	)

	path, err := b.covers.Path(album.CoverRef)
	if err == nil {
		_, err = os.Stat(path)
	}
	if err != nil {
		logger.Warn(ctx, component, "cover.missing",
			slog.String("status", "fail"),
			slog.Int64("album_id", album.ID),
			slog.String("cover_ref", album.CoverRef),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, caption, &tele.SendOptions{ReplyMarkup: links})
	}
	return tghelpers.SendPhoto(c, &tele.Photo{File: tele.FromDisk(path), Caption: caption}, links)
}

// Caption renders the album line shown under a cover.
func Caption(a catalog.Album) string {
	return fmt.Sprintf("%s - %s (%s, %d)", a.Title, a.Artist, a.Label, a.ReleaseYear)
}

func (b *Bot) handleAdd(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reply, err := b.subs.Start(ctx, senderID(c))
	return errors.Join(err, b.sendReply(c, reply))
}

func (b *Bot) handleCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reply, err := b.subs.Cancel(ctx, senderID(c))
	return errors.Join(err, b.sendReply(c, reply))
}

// handleCancelButton cancels from the inline button. Buttons carry the id of
// the user they were sent to, so nobody else can cancel a draft in a group.
func (b *Bot) handleCancelButton(c tele.Context) error {
	if !callbacks.OwnedBy(c) {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, err := b.subs.Cancel(ctx, senderID(c))
	text := reply.Text
	if reply.Outcome == submission.OutcomeIgnored {
		text = msgStaleButton
	}
	return errors.Join(err, tghelpers.EditOrSendText(c, text))
}

func (b *Bot) sendReply(c tele.Context, reply submission.Reply) error {
	if reply.Text == "" {
		return nil
	}
	opts := &tele.SendOptions{}
	if reply.Cancelable() {
		opts.ReplyMarkup = keyboard.CancelMarkup(cancelCallback, strconv.FormatInt(senderID(c), 10))
	}
	return tghelpers.SendText(c, reply.Text, opts)
}

func (b *Bot) roleHandler(command string, role catalog.Role) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		arg := ""
		if m := c.Message(); m != nil {
			arg = strings.TrimSpace(m.Payload)
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return tghelpers.SendText(c, fmt.Sprintf(msgRoleUsage, command))
		}
		if role != catalog.RoleAdmin && id == senderID(c) {
			return tghelpers.SendText(c, msgSelfDemote)
		}

		err = b.catalog.SetRole(ctx, id, role)
		switch {
		case errors.Is(err, catalog.ErrUserNotFound):
			return tghelpers.SendText(c, fmt.Sprintf(msgUserNotFound, id))
		case err != nil:
			return errors.Join(err, tghelpers.SendText(c, msgTryAgain))
		}
		logger.Info(ctx, component, "user.role",
			slog.String("status", "ok"),
			slog.Int64("target_id", id),
			slog.String("role", string(role)),
		)
		return tghelpers.SendText(c, fmt.Sprintf(msgRoleChanged, id, role))
	}
}

func (b *Bot) handleHelp(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	isAdmin, err := b.IsAdmin(ctx, senderID(c))
	if err != nil {
		logger.Warn(ctx, component, "help.role",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	var sb strings.Builder
	sb.WriteString(msgHelpHeader)
	for _, line := range b.reg.HelpLines(isAdmin) {
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	if n, err := b.catalog.CountAlbums(ctx); err != nil {
		logger.Warn(ctx, component, "help.count",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	} else {
		fmt.Fprintf(&sb, "\n\n"+msgCatalogSize, n)
	}
	sb.WriteString("\n\nversion ")
	sb.WriteString(buildinfo.String())
	return tghelpers.SendText(c, sb.String())
}
