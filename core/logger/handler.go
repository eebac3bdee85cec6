package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type format string

const (
	formatJSON format = "json"
	formatKV   format = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

// handler renders records as flat lines: "k=v ..." or one JSON object, with
// well known keys first in a fixed order and the rest sorted.
type handler struct {
	level  slog.Leveler
	out    *sink
	format format
	order  []string

	attrs  []slog.Attr
	prefix string
}

func newHandler(level slog.Leveler, out *sink, f format, order []string) *handler {
	if level == nil {
		level = slog.LevelInfo
	}
	if len(order) == 0 {
		order = defaultKeyOrder
	}
	return &handler{level: level, out: out, format: f, order: order}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil {
		return errNoSink
	}
	e := newEntry(r.NumAttrs() + len(h.attrs) + 4)
	ts := r.Time.UTC()
	e.set("ts", ts.Truncate(time.Millisecond).Format(tsLayout))
	e.set("level", levelName(r.Level))
	if h.format == formatJSON {
		e.set("ts_unix_nano", ts.UnixNano())
	}
	for _, a := range h.attrs {
		e.add(h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(h.prefix, a)
		return true
	})
	metaFrom(ctx).addTo(e)
	e.finish(r.Message, h.format == formatJSON)

	var line []byte
	if h.format == formatJSON {
		var err error
		if line, err = e.json(h.order); err != nil {
			return err
		}
	} else {
		line = e.kv(h.order)
	}
	return h.out.Write(append(line, '\n'))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(slices.Clip(h.attrs), attrs...)
	return &c
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = joinKey(h.prefix, name)
	return &c
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// entry is one log line under construction.
type entry struct {
	fields map[string]any
}

func newEntry(size int) *entry {
	return &entry{fields: make(map[string]any, size)}
}

func (e *entry) set(key string, v any) { e.fields[key] = v }

func (e *entry) setDefault(key string, v any) {
	if _, ok := e.fields[key]; !ok {
		e.fields[key] = v
	}
}

func (e *entry) str(key string) string {
	switch v := e.fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// add flattens groups into dotted keys.
func (e *entry) add(prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := plainValue(key, a.Value); ok {
		e.fields[k] = v
	}
}

func plainValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	case string:
		return key, strings.TrimSpace(x), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// msKey puts the unit into duration keys: duration -> duration_ms.
func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

// finish fills required keys, normalizes enumerations and drops empty values.
func (e *entry) finish(msg string, full bool) {
	if e.str("event") == "" {
		if msg == "" {
			msg = "unknown"
		}
		e.set("event", msg)
	}
	if e.str("component") == "" {
		e.set("component", "app")
	}
	if rid := e.str("rid"); rid != "" {
		if c := CompactRID(rid); c != rid {
			if full {
				e.setDefault("rid_full", rid)
			}
			e.set("rid", c)
		}
	}
	if s := e.str("status"); s != "" {
		e.set("status", normalizeStatus(s))
	}
	if o := e.str("outcome"); o != "" {
		if v, ok := normalizeOutcome(o); ok {
			e.set("outcome", v)
		} else {
			delete(e.fields, "outcome")
		}
	}
	for k, v := range e.fields {
		if s, ok := v.(string); ok && s == "" {
			delete(e.fields, k)
		}
	}
}

// keys returns ordered keys first, then the rest alphabetically.
func (e *entry) keys(order []string) []string {
	out := make([]string, 0, len(e.fields))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := e.fields[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	n := len(out)
	for k := range e.fields {
		if !seen[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out[n:])
	return out
}

func (e *entry) kv(order []string) []byte {
	var b []byte
	for i, k := range e.keys(order) {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, k...)
		b = append(b, '=')
		b = appendKVValue(b, e.fields[k])
	}
	return b
}

func appendKVValue(b []byte, v any) []byte {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.AppendBool(b, x)
	case int64:
		return strconv.AppendInt(b, x, 10)
	default:
		s = fmt.Sprint(x)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.AppendQuote(b, s)
	}
	return append(b, s...)
}

func (e *entry) json(order []string) ([]byte, error) {
	b := []byte{'{'}
	for i, k := range e.keys(order) {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendQuote(b, k)
		b = append(b, ':')
		v, err := json.Marshal(e.fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		b = append(b, v...)
	}
	return append(b, '}'), nil
}
