package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type field struct {
	key string
	val any
}

// entry holds the fields of one line; later writes win.
type entry map[string]any

func (e entry) set(f field) {
	if f.key == "" {
		return
	}
	if s, ok := f.val.(string); ok && s == "" {
		delete(e, f.key)
		return
	}
	if f.val == nil {
		delete(e, f.key)
		return
	}
	e[f.key] = f.val
}

func (e entry) setDefault(f field) {
	if _, ok := e[f.key]; !ok {
		e.set(f)
	}
}

func (e entry) str(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// finish fills event and component, compacts the rid and normalizes enums.
func (e entry) finish(msg string, keepFullRID bool) {
	if rid := e.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			e["rid"] = compact
			if keepFullRID {
				e.setDefault(field{"rid_full", rid})
			}
		}
	}
	if e.str("event") == "" {
		if msg == "" {
			msg = "unknown"
		}
		e["event"] = msg
	}
	if e.str("component") == "" {
		e["component"] = "app"
	}
	if s := e.str("status"); s != "" {
		e["status"] = normalizeStatus(s)
	}
	if o := e.str("outcome"); o != "" {
		if norm, ok := normalizeOutcome(o); ok {
			e["outcome"] = norm
		} else {
			delete(e, "outcome")
		}
	}
}

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as ordered KV or JSON lines. Attributes
// bound through WithAttrs are converted once and reused for every record.
type structuredHandler struct {
	cfg    handlerConfig
	prefix string
	bound  []field
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	isJSON := h.cfg.format == formatJSON

	e := make(entry, 16)
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(timeLayout)
	e["level"] = levelName(r.Level.String())
	if isJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}
	for _, f := range h.bound {
		e.set(f)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, e.set)
		return true
	})
	for _, f := range metaFrom(ctx).fields() {
		e.setDefault(f)
	}
	e.finish(r.Message, isJSON)

	var line []byte
	if isJSON {
		var err error
		if line, err = encodeJSON(e, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = encodeKV(e, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.bound = append([]field(nil), h.bound...)
	for _, a := range attrs {
		flatten(h.prefix, a, func(f field) { clone.bound = append(clone.bound, f) })
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
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

// flatten expands groups into dotted keys and emits normalized fields.
func flatten(prefix string, a slog.Attr, emit func(field)) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(key, child, emit)
		}
		return
	}
	if key == "" {
		return
	}
	if f, ok := normalize(key, v); ok {
		emit(f)
	}
}

func normalize(key string, v slog.Value) (field, bool) {
	switch v.Kind() {
	case slog.KindString:
		return field{key, strings.TrimSpace(v.String())}, true
	case slog.KindBool:
		return field{key, v.Bool()}, true
	case slog.KindInt64:
		return field{key, v.Int64()}, true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return field{key, int64(u)}, true
		}
		return field{key, v.Uint64()}, true
	case slog.KindFloat64:
		return field{key, v.Float64()}, true
	case slog.KindDuration:
		return field{durationKey(key), RoundMS(v.Duration()).Milliseconds()}, true
	case slog.KindTime:
		return field{key, v.Time().UTC().Format(time.RFC3339Nano)}, true
	}
	switch x := v.Any().(type) {
	case nil:
		return field{}, false
	case error:
		return field{key, x.Error()}, true
	case time.Duration:
		return field{durationKey(key), RoundMS(x).Milliseconds()}, true
	case fmt.Stringer:
		return field{key, x.String()}, true
	case string:
		return field{key, strings.TrimSpace(x)}, true
	default:
		return field{key, fmt.Sprint(x)}, true
	}
}

// durationKey maps duration attributes onto the *_ms naming used in every line.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return key + "_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// RoundMS rounds d to whole milliseconds; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}
