// Package broadcast fans one message out to every known user, paced to a
// fixed time budget and isolated per recipient.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/m3rciful/quicklink/core/logger"
)

// Kind is the media type of a broadcast.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// Content is the captured broadcast: text or caption plus an optional file reference.
type Content struct {
	Kind   Kind
	Text   string
	FileID string
}

// RateLimitError signals the transport asked to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("broadcast: rate limited, retry after %s", e.RetryAfter)
}

// SendFunc delivers content to one recipient.
type SendFunc func(ctx context.Context, userID int64, c Content) error

// Options tunes pacing. Zero values pick the defaults below.
type Options struct {
	Budget     time.Duration
	MinDelay   time.Duration
	MaxDelay   time.Duration
	MaxBackoff time.Duration
	// FloodPad is added to the transport's retry-after hint.
	FloodPad time.Duration
	// Sleep waits d or until ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error
}

const (
	defaultBudget     = 300 * time.Second
	defaultMinDelay   = 50 * time.Millisecond
	defaultMaxDelay   = 2 * time.Second
	defaultMaxBackoff = 300 * time.Second
	defaultFloodPad   = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Budget <= 0 {
		o.Budget = defaultBudget
	}
	if o.MinDelay <= 0 {
		o.MinDelay = defaultMinDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.FloodPad < 0 {
		o.FloodPad = 0
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	return o
}

// Delay is the per-recipient spacing: clamp(budget/n, min, max).
func Delay(n int, o Options) time.Duration {
	o = o.withDefaults()
	if n <= 0 {
		return 0
	}
	d := o.Budget / time.Duration(n)
	if d < o.MinDelay {
		d = o.MinDelay
	}
	if d > o.MaxDelay {
		d = o.MaxDelay
	}
	return d
}

// Backoff is the wait after a rate-limit signal: min(retryAfter+pad, maxBackoff).
func Backoff(retryAfter time.Duration, o Options) time.Duration {
	o = o.withDefaults()
	d := retryAfter + o.FloodPad
	if d > o.MaxBackoff {
		d = o.MaxBackoff
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Report summarizes a finished run.
type Report struct {
	ID      string
	Sent    int
	Failed  int
	Total   int
	Elapsed time.Duration
}

// Run delivers c to every recipient in order. A rate-limited send waits the
// backoff and is retried exactly once; any other failure is counted and the run
// moves on. A cancelled ctx stops the run and counts the remaining recipients as failed.
func Run(ctx context.Context, recipients []int64, c Content, send SendFunc, opts Options) Report {
	opts = opts.withDefaults()
	rep := Report{ID: uuid.NewString(), Total: len(recipients)}
	start := time.Now()
	delay := Delay(len(recipients), opts)

	logger.Info(ctx, "broadcast", "broadcast.start",
		slog.String("broadcast_id", rep.ID),
		slog.Int("total", rep.Total),
		slog.Duration("delay", delay),
	)

	limiter := rate.NewLimiter(rate.Every(delay), 1)
	for i, uid := range recipients {
		if err := limiter.Wait(ctx); err != nil {
			rep.Failed += len(recipients) - i
			break
		}
		if err := deliver(ctx, uid, c, send, opts); err != nil {
			rep.Failed++
			logger.Debug(ctx, "broadcast", "broadcast.recipient_failed",
				slog.String("broadcast_id", rep.ID),
				slog.Int64("user_id", uid),
				slog.String("err", err.Error()),
			)
			continue
		}
		rep.Sent++
	}
	rep.Elapsed = time.Since(start)

	logger.Info(ctx, "broadcast", "broadcast.done",
		slog.String("broadcast_id", rep.ID),
		slog.Int("sent", rep.Sent),
		slog.Int("failed", rep.Failed),
		slog.Int("total", rep.Total),
		slog.Duration("duration", rep.Elapsed),
	)
	return rep
}

func deliver(ctx context.Context, uid int64, c Content, send SendFunc, opts Options) error {
	err := send(ctx, uid, c)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		return err
	}
	wait := Backoff(rl.RetryAfter, opts)
	logger.Warn(ctx, "broadcast", "broadcast.rate_limited",
		slog.Int64("user_id", uid),
		slog.Int64("backoff_ms", wait.Milliseconds()),
	)
	if err := opts.Sleep(ctx, wait); err != nil {
		return err
	}
	return send(ctx, uid, c)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
