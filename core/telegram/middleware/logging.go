package middleware

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/quicklink/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const seenWindow = 256

// seenUpdates remembers the most recent update ids in a fixed ring.
type seenUpdates struct {
	mu   sync.Mutex
	ring [seenWindow]int
	set  map[int]struct{}
	next int
	full bool
}

// mark records id and reports whether it was already present.
func (s *seenUpdates) mark(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[int]struct{}, seenWindow)
	}
	if _, ok := s.set[id]; ok {
		return true
	}
	if s.full {
		delete(s.set, s.ring[s.next])
	}
	s.ring[s.next] = id
	s.set[id] = struct{}{}
	s.next = (s.next + 1) % seenWindow
	if s.next == 0 {
		s.full = true
	}
	return false
}

var received seenUpdates

// LoggerMiddleware assigns the request id and logs one sampled debug line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		meta := tghelpers.MetaOf(c)
		if logger.ShouldSampleDebug() && !received.mark(meta.UpdateID) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c, meta)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, meta tghelpers.UpdateMeta) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Int("update_id", meta.UpdateID),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.Int64("chat_id", chat.ID), slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		attrs = append(attrs, slog.Int64("user_id", user.ID))
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
	}

	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		kind := "text"
		switch {
		case upd.Message.Photo != nil:
			kind = "photo"
		case upd.Message.Document != nil:
			kind = "document"
		case upd.Message.Video != nil:
			kind = "video"
		}
		attrs = append(attrs, slog.String("msg_kind", kind))
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
