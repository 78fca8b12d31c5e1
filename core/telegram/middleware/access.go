package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/quicklink/core/logger"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID != 0 && !IsAdmin(c, opts.AdminID) {
				logger.Info(context.Background(), "tg", "access.denied",
					slog.Int64("user_id", senderID(c)),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// IsAdmin reports whether the update sender is adminID.
func IsAdmin(c tele.Context, adminID int64) bool {
	return adminID != 0 && senderID(c) == adminID
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
