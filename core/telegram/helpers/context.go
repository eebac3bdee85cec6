package helpers

import (
	"context"

	"github.com/m3rciful/tunerover/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey = "log_ctx"
	ridKey = "rid"
)

// StoreContext keeps ctx on the update for later handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxKey, ctx)
	}
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// RID returns the correlation id of the update, "updateID:chatID:userID".
func RID(c tele.Context) string {
	if rid, ok := c.Get(ridKey).(string); ok && rid != "" {
		return rid
	}
	var chatID, userID int64
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	rid := logger.BuildRID(c.Update().ID, chatID, userID)
	c.Set(ridKey, rid)
	return rid
}

// BuildContext returns the update's logging context, creating it on first use.
// Services receive it so their log lines carry rid, update, user and chat.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	var chatID, userID int64
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	ctx := logger.WithRID(logger.Background(), RID(c))
	ctx = logger.WithUpdateMeta(ctx, c.Update().ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler adds the handler name to the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	StoreContext(c, ctx)
	return ctx
}
