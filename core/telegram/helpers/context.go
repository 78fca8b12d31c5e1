package helpers

import (
	"context"

	"github.com/m3rciful/quicklink/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ridKey = "rid"
	ctxKey = "log_ctx"
)

// UpdateMeta identifies the update being handled.
type UpdateMeta struct {
	UpdateID int
	UserID   int64
	ChatID   int64
}

// MetaOf extracts update, sender and chat ids from c. Missing parts stay zero.
func MetaOf(c tele.Context) UpdateMeta {
	m := UpdateMeta{UpdateID: c.Update().ID}
	if u := c.Sender(); u != nil {
		m.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		m.ChatID = ch.ID
	}
	return m
}

// RID returns the request id of c, assigning one on first call.
func RID(c tele.Context) string {
	if rid, ok := c.Get(ridKey).(string); ok && rid != "" {
		return rid
	}
	m := MetaOf(c)
	rid := logger.BuildRID(m.UpdateID, m.ChatID, m.UserID)
	c.Set(ridKey, rid)
	return rid
}

// BuildContext returns the logging context of c: rid, update meta and the tg
// component logger. The context is built once per update and cached on c.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	m := MetaOf(c)
	ctx := logger.WithRID(logger.Background(), RID(c))
	ctx = logger.WithUpdateMeta(ctx, m.UpdateID, m.UserID, m.ChatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(ctxKey, ctx)
	return ctx
}

// WithHandler tags the cached context of c with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(ctxKey, ctx)
	return ctx
}
