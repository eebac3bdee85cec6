package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	tele "gopkg.in/telebot.v4"
)

var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tg",
		Name:      "updates_total",
		Help:      "Incoming Telegram updates by kind.",
	}, []string{"kind"})

	handlerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tg",
		Name:      "handler_total",
		Help:      "Handled updates by handler and status.",
	}, []string{"handler", "status"})

	handlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tg",
		Name:      "handler_duration_seconds",
		Help:      "Handler latency including outbound calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"handler"})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tg",
		Name:      "messages_sent_total",
		Help:      "Messages sent or edited in response to updates.",
	}, []string{"keyboard"})
)

// UpdateKind classifies an update for metrics and rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Query != nil:
		return "inline_query"
	case upd.Message != nil:
		switch {
		case upd.Message.Photo != nil:
			return "photo"
		case upd.Message.Document != nil:
			return "document"
		}
		return "message"
	}
	return "other"
}

// ObserveHandler records one handler run.
func ObserveHandler(handler, status string, took time.Duration) {
	handlerTotal.WithLabelValues(handler, status).Inc()
	handlerDuration.WithLabelValues(handler).Observe(took.Seconds())
}

const (
	messagesKey = "messages"
	keyboardKey = "kb"
)

// countingContext counts the replies a handler sends so the handler
// summary can report them.
type countingContext struct{ tele.Context }

func (c countingContext) track(err error, opts []any) error {
	if err != nil {
		return err
	}
	n, _ := c.Get(messagesKey).(int)
	c.Set(messagesKey, n+1)
	label := "no"
	if withKeyboard(opts) {
		c.Set(keyboardKey, true)
		label = "yes"
	}
	messagesSent.WithLabelValues(label).Inc()
	return nil
}

func withKeyboard(opts []any) bool {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok && so != nil && so.ReplyMarkup != nil {
			return true
		}
		if rm, ok := o.(*tele.ReplyMarkup); ok && rm != nil {
			return true
		}
	}
	return false
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware counts the update by kind and hands the handler
// a context that counts replies.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		updatesTotal.WithLabelValues(UpdateKind(c.Update())).Inc()
		c.Set(messagesKey, 0)
		c.Set(keyboardKey, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns the replies sent so far and whether any had a keyboard.
func GetCounters(c tele.Context) (messages int, keyboard bool) {
	messages, _ = c.Get(messagesKey).(int)
	keyboard, _ = c.Get(keyboardKey).(bool)
	return messages, keyboard
}
