package bot

import (
	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"
	"github.com/m3rciful/tunerover/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

type fallbacks struct{}

var _ ui.FallbackProvider = fallbacks{}

func replyWith(text string) tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.SendText(c, text) }
}

func (fallbacks) UnknownText() tele.HandlerFunc     { return replyWith(msgUnknownText) }
func (fallbacks) UnknownCommand() tele.HandlerFunc  { return replyWith(msgUnknownCommand) }
func (fallbacks) UnknownPhoto() tele.HandlerFunc    { return replyWith(msgUnexpectedFile) }
func (fallbacks) UnknownDocument() tele.HandlerFunc { return replyWith(msgUnexpectedFile) }
func (fallbacks) AccessDenied() tele.HandlerFunc    { return replyWith(msgAccessDenied) }

// UnknownCallback answers presses on buttons from older bot versions.
func (fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.EditOrSendText(c, msgStaleButton) }
}
