// Package storage persists users, counters, recent URLs, feature flags and
// the last broadcast time behind one Backend contract.
package storage

import (
	"context"
	"errors"
	"time"
)

// Counter names a monotonically growing usage counter.
type Counter string

const (
	CounterShorten Counter = "shorten"
	CounterQRGen   Counter = "qrgen"
	CounterQRScan  Counter = "qrscan"
)

// Counters lists every counter in display order.
var Counters = []Counter{CounterShorten, CounterQRGen, CounterQRScan}

// Feature names an owner-controlled feature flag.
type Feature string

const (
	FeatureShorten   Feature = "shorten"
	FeatureQRGen     Feature = "qrgen"
	FeatureQRScan    Feature = "qrscan"
	FeatureBroadcast Feature = "broadcast"
	FeatureChat      Feature = "chat"
)

// Features lists every flag in admin panel order.
var Features = []Feature{FeatureShorten, FeatureQRGen, FeatureQRScan, FeatureBroadcast, FeatureChat}

// ParseFeature maps a raw flag name to a known Feature.
func ParseFeature(s string) (Feature, bool) {
	for _, f := range Features {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

const (
	// RecentURLCap bounds the persisted recent-URL log.
	RecentURLCap = 20
	// RecentURLShown is how many entries the state views display.
	RecentURLShown = 5
)

var (
	// ErrUnknownDriver is returned for an unsupported storage.driver value.
	ErrUnknownDriver = errors.New("storage: unknown driver")
	// ErrNotConfigured is returned when a networked driver lacks connection settings.
	ErrNotConfigured = errors.New("storage: driver not configured")
)

// URLEntry is one shortened URL with its unix timestamp.
type URLEntry struct {
	URL string `json:"url" db:"url"`
	TS  int64  `json:"ts" db:"ts"`
}

// Backend is the persistence contract shared by every driver.
type Backend interface {
	// RegisterUser adds id to the known users; repeated calls are no-ops.
	RegisterUser(ctx context.Context, id int64) error
	Users(ctx context.Context) ([]int64, error)

	Increment(ctx context.Context, c Counter, n int64) error
	Stats(ctx context.Context) (map[Counter]int64, error)

	// PushURL prepends u to the recent log and trims it to RecentURLCap.
	PushURL(ctx context.Context, u string, at time.Time) error
	// RecentURLs returns up to n entries, newest first.
	RecentURLs(ctx context.Context, n int) ([]URLEntry, error)

	SetFeature(ctx context.Context, f Feature, on bool) error
	// Features returns only the flags that were explicitly stored.
	Features(ctx context.Context) (map[Feature]bool, error)

	SetLastBroadcast(ctx context.Context, at time.Time) error
	LastBroadcast(ctx context.Context) (time.Time, bool, error)

	// Name identifies the driver in logs and on the status page.
	Name() string
	Close() error
}

// DefaultFeatures returns every flag switched on.
func DefaultFeatures() map[Feature]bool {
	out := make(map[Feature]bool, len(Features))
	for _, f := range Features {
		out[f] = true
	}
	return out
}

// Enabled reports the flag value; absent flags count as on.
func Enabled(flags map[Feature]bool, f Feature) bool {
	on, ok := flags[f]
	return !ok || on
}

// SeedFeatures stores the default value for every flag missing in b.
func SeedFeatures(ctx context.Context, b Backend) error {
	have, err := b.Features(ctx)
	if err != nil {
		return err
	}
	for _, f := range Features {
		if _, ok := have[f]; ok {
			continue
		}
		if err := b.SetFeature(ctx, f, true); err != nil {
			return err
		}
	}
	return nil
}

func clampRecent(n int) int {
	if n <= 0 || n > RecentURLCap {
		return RecentURLCap
	}
	return n
}
