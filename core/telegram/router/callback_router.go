package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/quicklink/core/telegram"
	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	"github.com/m3rciful/quicklink/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions overrides the registry's unknown-callback fallback.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches namespace|value callbacks by namespace. Handlers
// answer the query themselves.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		key := callbacks.CallbackKey(c)
		fn, found := resolveCallback(reg, opts, key)
		extras := []slog.Attr{slog.String("cb_key", key)}
		if !found {
			extras = append(extras, slog.String("reason", "not_found"))
		}
		return handleWithSummary(c, "callback."+normalizeHandlerName(key), start, func() error {
			return fn(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

// resolveCallback returns the handler for key, or the fallback chain with
// found=false. The last resort just answers the query.
func resolveCallback(reg *tg.Registry, opts CallbackOptions, key string) (tele.HandlerFunc, bool) {
	if h, ok := reg.GetCallback(key); ok && h != nil {
		return h, true
	}
	if opts.NotFound != nil {
		return opts.NotFound, false
	}
	if h := reg.CallbackNotFound(); h != nil {
		return h, false
	}
	return func(c tele.Context) error { return c.Respond() }, false
}
