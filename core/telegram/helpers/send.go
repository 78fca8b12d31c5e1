package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the outbound queue used by Dispatch; nil removes it.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Dispatch queues run on the outbound sender. Without a sender, or when the
// queue is full or closed, run is executed inline.
func Dispatch(ctx context.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	err := d.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText queues plain text for the chat of c.
func SendText(c tele.Context, text string, opts ...any) error {
	return Dispatch(BuildContext(c), "send.text", "sendMessage", func() error {
		return c.Send(text, opts...)
	})
}
