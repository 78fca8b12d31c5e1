package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider supplies the handlers for text and callbacks that match
// no registered command or callback namespace.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// FallbackSink receives fallback handlers; *telegram.Registry satisfies it.
type FallbackSink interface {
	SetTextFallback(tele.HandlerFunc)
	SetCallbackNotFound(tele.HandlerFunc)
}

// Install registers both fallbacks of p on sink. A nil handler leaves the
// existing one in place.
func Install(sink FallbackSink, p FallbackProvider) {
	if sink == nil || p == nil {
		return
	}
	if h := p.UnknownText(); h != nil {
		sink.SetTextFallback(h)
	}
	if h := p.UnknownCallback(); h != nil {
		sink.SetCallbackNotFound(h)
	}
}
