// Package helpers sends replies through the shared dispatcher and carries
// the per-update logging context.
package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/tunerover/core/logger"
	"github.com/m3rciful/tunerover/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper sends through d. nil makes them synchronous.
func SetDispatcher(d *sender.Dispatcher) { dispatcher.Store(d) }

// deliver queues run on the dispatcher. Without one, or when the queue
// rejects the job, run is called inline.
func deliver(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	default:
		return err
	}
}

// sendOpts drops nil markups and options so callers can pass optional ones.
func sendOpts(opts []any) []any {
	out := opts[:0:0]
	for _, o := range opts {
		switch v := o.(type) {
		case nil:
		case *tele.ReplyMarkup:
			if v != nil {
				out = append(out, v)
			}
		case *tele.SendOptions:
			if v != nil {
				out = append(out, v)
			}
		default:
			out = append(out, o)
		}
	}
	return out
}

// SendText sends plain text to the chat of the update.
func SendText(c tele.Context, text string, opts ...any) error {
	opts = sendOpts(opts)
	return deliver(c, "send.text", "sendMessage", func() error { return c.Send(text, opts...) })
}

// SendPhoto sends photo with its caption to the chat of the update.
func SendPhoto(c tele.Context, photo *tele.Photo, opts ...any) error {
	opts = sendOpts(opts)
	return deliver(c, "send.photo", "sendPhoto", func() error { return c.Send(photo, opts...) })
}

// EditOrSendText edits the message a callback came from, or sends a new one.
func EditOrSendText(c tele.Context, text string, opts ...any) error {
	opts = sendOpts(opts)
	return deliver(c, "edit.text", "editMessageText", func() error { return c.EditOrSend(text, opts...) })
}

// DeleteIncoming deletes the message that triggered the update. Failures are
// logged only; in groups the bot may lack the right.
func DeleteIncoming(c tele.Context) {
	if c.Message() == nil {
		return
	}
	if err := c.Delete(); err != nil {
		logger.Warn(BuildContext(c), "tg.sender", "delete.message",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
