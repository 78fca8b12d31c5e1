package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/quicklink/core/telegram"
	"github.com/m3rciful/quicklink/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions controls routing of plain text and media updates.
type MessageOptions struct {
	// OnMessage receives every non-command message, text or media.
	OnMessage tele.HandlerFunc
	// UnknownText is used when OnMessage is nil.
	UnknownText tele.HandlerFunc
	Commands    CommandRouteOptions
}

var timeNow = time.Now

// MessageRoutes builds handlers for text and media updates. Text that names a
// registered command, including aliases and mixed case, always runs the command
// so a command starts a fresh flow even while another one is waiting for input.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := timeNow()
		text := strings.TrimSpace(c.Text())

		if reg != nil && strings.HasPrefix(text, "/") {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				return wrapCommand(key, cmd, opts.Commands)(c)
			}
		}
		return dispatchMessage(c, reg, opts, "message.text", start)
	}

	mediaHandler := func(c tele.Context) error {
		return dispatchMessage(c, reg, opts, "message.media", timeNow())
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(mediaHandler)},
		{Endpoint: tele.OnDocument, Handler: wrap(mediaHandler)},
		{Endpoint: tele.OnVideo, Handler: wrap(mediaHandler)},
	}
}

func dispatchMessage(c tele.Context, reg *tg.Registry, opts MessageOptions, name string, start time.Time) error {
	if opts.OnMessage != nil {
		return handleWithSummary(c, name, start, func() error {
			return opts.OnMessage(c)
		})
	}
	if reg != nil {
		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "fallback", start, func() error {
				return fb(c)
			})
		}
	}
	if opts.UnknownText != nil {
		return handleWithSummary(c, "unknown_text", start, func() error {
			return opts.UnknownText(c)
		})
	}
	logHandlerSummary(c, "unknown_text", start, outcomeSkip, nil)
	return nil
}
