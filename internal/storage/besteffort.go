package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/quicklink/core/logger"
)

// BestEffort logs and swallows backend errors so no user interaction fails on storage.
// Reads degrade to empty values: no users, zero counters, every feature on.
type BestEffort struct {
	b Backend
}

// NewBestEffort wraps b.
func NewBestEffort(b Backend) *BestEffort {
	return &BestEffort{b: b}
}

// Backend returns the wrapped driver.
func (s *BestEffort) Backend() Backend { return s.b }

func (s *BestEffort) warn(ctx context.Context, op string, err error) {
	logger.Warn(ctx, "store", "store.degraded",
		slog.String("driver", s.b.Name()),
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
}

// RegisterUser records the user id.
func (s *BestEffort) RegisterUser(ctx context.Context, id int64) {
	if err := s.b.RegisterUser(ctx, id); err != nil {
		s.warn(ctx, "register_user", err)
	}
}

// Users returns known users or nil on failure.
func (s *BestEffort) Users(ctx context.Context) []int64 {
	ids, err := s.b.Users(ctx)
	if err != nil {
		s.warn(ctx, "users", err)
		return nil
	}
	return ids
}

// Increment bumps a counter by one.
func (s *BestEffort) Increment(ctx context.Context, c Counter) {
	if err := s.b.Increment(ctx, c, 1); err != nil {
		s.warn(ctx, "increment", err)
	}
}

// Stats returns every known counter, zero filled.
func (s *BestEffort) Stats(ctx context.Context) map[Counter]int64 {
	out := make(map[Counter]int64, len(Counters))
	for _, c := range Counters {
		out[c] = 0
	}
	got, err := s.b.Stats(ctx)
	if err != nil {
		s.warn(ctx, "stats", err)
		return out
	}
	for k, v := range got {
		out[k] = v
	}
	return out
}

// PushURL appends to the recent log.
func (s *BestEffort) PushURL(ctx context.Context, u string, at time.Time) {
	if err := s.b.PushURL(ctx, u, at); err != nil {
		s.warn(ctx, "push_url", err)
	}
}

// RecentURLs returns up to n entries, newest first.
func (s *BestEffort) RecentURLs(ctx context.Context, n int) []URLEntry {
	out, err := s.b.RecentURLs(ctx, n)
	if err != nil {
		s.warn(ctx, "recent_urls", err)
		return nil
	}
	return out
}

// Features returns every flag with defaults applied.
func (s *BestEffort) Features(ctx context.Context) map[Feature]bool {
	out := DefaultFeatures()
	got, err := s.b.Features(ctx)
	if err != nil {
		s.warn(ctx, "features", err)
		return out
	}
	for k, v := range got {
		out[k] = v
	}
	return out
}

// Enabled reports a single flag.
func (s *BestEffort) Enabled(ctx context.Context, f Feature) bool {
	return Enabled(s.Features(ctx), f)
}

// Toggle flips f and returns the new value.
func (s *BestEffort) Toggle(ctx context.Context, f Feature) bool {
	next := !s.Enabled(ctx, f)
	if err := s.b.SetFeature(ctx, f, next); err != nil {
		s.warn(ctx, "set_feature", err)
	}
	return next
}

// SetLastBroadcast stores the completion time of a broadcast.
func (s *BestEffort) SetLastBroadcast(ctx context.Context, at time.Time) {
	if err := s.b.SetLastBroadcast(ctx, at); err != nil {
		s.warn(ctx, "set_last_broadcast", err)
	}
}

// LastBroadcast returns the last completion time, if any.
func (s *BestEffort) LastBroadcast(ctx context.Context) (time.Time, bool) {
	at, ok, err := s.b.LastBroadcast(ctx)
	if err != nil {
		s.warn(ctx, "last_broadcast", err)
		return time.Time{}, false
	}
	return at, ok
}

// Close closes the wrapped driver.
func (s *BestEffort) Close() error {
	return s.b.Close()
}
