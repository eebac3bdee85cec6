package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates cannot be
// mapped to a command, callback or running dialogue.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCommand() tele.HandlerFunc
	UnknownPhoto() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	AccessDenied() tele.HandlerFunc
}
