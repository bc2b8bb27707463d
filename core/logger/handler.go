package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// defaultKeyOrder puts the fields used to follow one chat through a
// questionnaire first; anything else follows alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"update_id",
	"chat_id",
	"user_id",
	"handler",
	"action",
	"step",
	"next_step",
	"period",
	"tracked",
	"deleted",
	"mode",
	"duration_ms",
	"err",
}

type handlerConfig struct {
	out    *lineWriter
	level  slog.Leveler
	format logFormat
	order  []string
}

// handler renders flat records. Groups become dotted key prefixes and
// durations are written as whole milliseconds under a *_ms key.
type handler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newHandler(cfg handlerConfig) *handler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.order == nil {
		cfg.order = defaultKeyOrder
	}
	return &handler{cfg: cfg}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	fields := make(map[string]any, 12)
	fields["ts"] = r.Time.UTC().Format(timeLayout)
	fields["level"] = r.Level.String()

	for _, a := range h.attrs {
		addAttr(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(fields, h.prefix, a)
		return true
	})
	addMeta(fields, metaFrom(ctx))

	if s, _ := fields["event"].(string); s == "" {
		fields["event"] = r.Message
	}
	if s, _ := fields["component"].(string); s == "" {
		fields["component"] = "app"
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}

	keys := orderKeys(fields, h.cfg.order)
	var (
		line []byte
		err  error
	)
	if h.cfg.format == formatKV {
		line = encodeKV(fields, keys)
	} else if line, err = encodeJSON(fields, keys); err != nil {
		return err
	}
	return h.cfg.out.Write(append(line, '\n'))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}

func addAttr(fields map[string]any, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			addAttr(fields, key, child)
		}
		return
	}
	if key == "" {
		return
	}

	switch v.Kind() {
	case slog.KindString:
		fields[key] = strings.TrimSpace(v.String())
	case slog.KindInt64:
		fields[key] = v.Int64()
	case slog.KindUint64:
		fields[key] = v.Uint64()
	case slog.KindFloat64:
		fields[key] = v.Float64()
	case slog.KindBool:
		fields[key] = v.Bool()
	case slog.KindDuration:
		fields[msKey(key)] = RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		fields[key] = v.Time().UTC().Format(time.RFC3339Nano)
	default:
		switch x := v.Any().(type) {
		case nil:
		case error:
			fields[key] = x.Error()
		case fmt.Stringer:
			fields[key] = x.String()
		default:
			fields[key] = fmt.Sprint(x)
		}
	}
}

func msKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

func addMeta(fields map[string]any, m meta) {
	set := func(k string, v any, empty bool) {
		if _, ok := fields[k]; !ok && !empty {
			fields[k] = v
		}
	}
	set("rid", m.rid, m.rid == "")
	set("update_id", int64(m.updateID), m.updateID == 0)
	set("chat_id", m.chatID, m.chatID == 0)
	set("user_id", m.userID, m.userID == 0)
	set("handler", m.handler, m.handler == "")
}

func orderKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := fields[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(fields)-len(keys))
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func encodeJSON(fields map[string]any, keys []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func encodeKV(fields map[string]any, keys []string) []byte {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		s := fmt.Sprint(fields[k])
		if strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 {
			s = strconv.Quote(s)
		}
		b.WriteString(s)
	}
	return []byte(b.String())
}
