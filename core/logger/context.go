package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	metaKey ctxKey = iota
	loggerKey
)

// meta is the per-request logging metadata carried by a context. Each With*
// helper copies it, so contexts derived earlier are never mutated.
type meta struct {
	rid      string
	handler  string
	flow     string
	step     string
	updateID int
	userID   int64
	chatID   int64
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey).(meta)
	return m
}

func withMeta(ctx context.Context, edit func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	edit(&m)
	return context.WithValue(ctx, metaKey, m)
}

// WithLogger stores log in ctx; FromContext returns it.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored in ctx, or the base logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID sets the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// RIDFrom returns the request id of ctx.
func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithUpdateMeta sets the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID, m.userID, m.chatID = updateID, userID, chatID
	})
}

// UpdateIDFrom returns the update id of ctx.
func UpdateIDFrom(ctx context.Context) int { return metaFrom(ctx).updateID }

// UserIDFrom returns the user id of ctx.
func UserIDFrom(ctx context.Context) int64 { return metaFrom(ctx).userID }

// ChatIDFrom returns the chat id of ctx.
func ChatIDFrom(ctx context.Context) int64 { return metaFrom(ctx).chatID }

// WithHandler names the handler serving the request. Empty names are ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// HandlerFrom returns the handler name of ctx.
func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }

// WithFlow sets the conversation flow and step; empty values keep the previous ones.
func WithFlow(ctx context.Context, flow, step string) context.Context {
	return withMeta(ctx, func(m *meta) {
		if flow != "" {
			m.flow = flow
		}
		if step != "" {
			m.step = step
		}
	})
}

// FlowFrom returns the conversation flow of ctx.
func FlowFrom(ctx context.Context) string { return metaFrom(ctx).flow }

// StepFrom returns the conversation step of ctx.
func StepFrom(ctx context.Context) string { return metaFrom(ctx).step }

// fields returns the metadata as log keys, skipping zero values.
func (m meta) fields() []field {
	out := make([]field, 0, 7)
	add := func(k string, v any, zero bool) {
		if !zero {
			out = append(out, field{k, v})
		}
	}
	add("rid", m.rid, m.rid == "")
	add("flow", m.flow, m.flow == "")
	add("step", m.step, m.step == "")
	add("user_id", m.userID, m.userID == 0)
	add("update_id", m.updateID, m.updateID == 0)
	add("chat_id", m.chatID, m.chatID == 0)
	add("handler", m.handler, m.handler == "")
	return out
}
