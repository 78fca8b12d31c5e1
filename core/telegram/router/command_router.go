package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/quicklink/core/logger"
	tg "github.com/m3rciful/quicklink/core/telegram"
	"github.com/m3rciful/quicklink/core/telegram/commands"
	tghelpers "github.com/m3rciful/quicklink/core/telegram/helpers"
	"github.com/m3rciful/quicklink/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate of AdminOnly commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes builds one route per command name and alias. Every endpoint
// of a command shares one wrapped handler.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	var routes []tg.Route
	for name, def := range cmds {
		h := wrapCommand(name, def, opts)
		for _, ep := range endpoints(name, def.Aliases) {
			routes = append(routes, tg.Route{Endpoint: ep, Handler: h})
		}
	}
	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

func endpoints(name string, aliases []string) []string {
	out := []string{name}
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a == "" {
			continue
		}
		if !strings.HasPrefix(a, "/") {
			a = "/" + a
		}
		out = append(out, a)
	}
	return out
}

// wrapCommand adds the summary line, the admin gate for AdminOnly commands,
// then logging and panic recovery.
func wrapCommand(name string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	summary := normalizeHandlerName(name)
	h := tele.HandlerFunc(func(c tele.Context) error {
		return handleWithSummary(c, summary, timeNow(), func() error { return def.Handler(c) })
	})
	if def.AdminOnly {
		reject := opts.OnAdminReject
		if text := def.RejectText; text != "" {
			reject = func(c tele.Context) error { return tghelpers.SendText(c, text) }
		}
		h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{AdminID: opts.AdminID, OnReject: reject})(h)
	}
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}
