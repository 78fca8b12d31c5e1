package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/quicklink/core/logger"
	tghelpers "github.com/m3rciful/quicklink/core/telegram/helpers"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum spacing between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds (callback, message, inline_query) that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now is used for idle pruning; nil means time.Now.
	Now func() time.Time
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterSet holds one token bucket per user and drops buckets idle for
// longer than limiterIdleTTL.
type limiterSet struct {
	mu        sync.Mutex
	every     rate.Limit
	users     map[int64]*userLimiter
	lastPrune time.Time
}

func newLimiterSet(interval time.Duration) *limiterSet {
	return &limiterSet{every: rate.Every(interval), users: make(map[int64]*userLimiter)}
}

func (s *limiterSet) allow(userID int64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastPrune) > limiterIdleTTL {
		for id, u := range s.users {
			if now.Sub(u.seen) > limiterIdleTTL {
				delete(s.users, id)
			}
		}
		s.lastPrune = now
	}
	u, ok := s.users[userID]
	if !ok {
		u = &userLimiter{lim: rate.NewLimiter(s.every, 1)}
		s.users[userID] = u
	}
	u.seen = now
	return u.lim.AllowN(now, 1)
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware drops updates from a user that arrive faster than
// opts.Interval. Dropped updates are passed to opts.OnLimited when set.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limits := newLimiterSet(opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if limits.allow(user.ID, now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.Int64("user_id", user.ID),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
