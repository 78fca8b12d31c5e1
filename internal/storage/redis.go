package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each concern under its own key below a common prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis parses url, connects and verifies the server with PING.
func OpenRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("storage: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: connect to redis: %w", err)
	}
	return NewRedis(client, prefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) key(name string) string { return r.prefix + name }

// RegisterUser implements Backend.
func (r *Redis) RegisterUser(ctx context.Context, id int64) error {
	if err := r.client.SAdd(ctx, r.key("users"), id).Err(); err != nil {
		return fmt.Errorf("storage: register user: %w", err)
	}
	return nil
}

// Users implements Backend.
func (r *Redis) Users(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, r.key("users")).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Increment implements Backend.
func (r *Redis) Increment(ctx context.Context, c Counter, n int64) error {
	if err := r.client.HIncrBy(ctx, r.key("stats"), string(c), n).Err(); err != nil {
		return fmt.Errorf("storage: increment %s: %w", c, err)
	}
	return nil
}

// Stats implements Backend.
func (r *Redis) Stats(ctx context.Context) (map[Counter]int64, error) {
	raw, err := r.client.HGetAll(ctx, r.key("stats")).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: stats: %w", err)
	}
	out := make(map[Counter]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[Counter(k)] = n
	}
	return out, nil
}

// PushURL implements Backend.
func (r *Redis) PushURL(ctx context.Context, u string, at time.Time) error {
	data, err := json.Marshal(URLEntry{URL: u, TS: at.Unix()})
	if err != nil {
		return fmt.Errorf("storage: encode url entry: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key("last_urls"), data)
	pipe.LTrim(ctx, r.key("last_urls"), 0, RecentURLCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: push url: %w", err)
	}
	return nil
}

// RecentURLs implements Backend.
func (r *Redis) RecentURLs(ctx context.Context, n int) ([]URLEntry, error) {
	raw, err := r.client.LRange(ctx, r.key("last_urls"), 0, int64(clampRecent(n)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: recent urls: %w", err)
	}
	out := make([]URLEntry, 0, len(raw))
	for _, item := range raw {
		var e URLEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// SetFeature implements Backend.
func (r *Redis) SetFeature(ctx context.Context, f Feature, on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	if err := r.client.HSet(ctx, r.key("features"), string(f), val).Err(); err != nil {
		return fmt.Errorf("storage: set feature %s: %w", f, err)
	}
	return nil
}

// Features implements Backend.
func (r *Redis) Features(ctx context.Context) (map[Feature]bool, error) {
	raw, err := r.client.HGetAll(ctx, r.key("features")).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: features: %w", err)
	}
	out := make(map[Feature]bool, len(raw))
	for k, v := range raw {
		out[Feature(k)] = v == "1"
	}
	return out, nil
}

// SetLastBroadcast implements Backend.
func (r *Redis) SetLastBroadcast(ctx context.Context, at time.Time) error {
	if err := r.client.Set(ctx, r.key("last_broadcast"), at.Unix(), 0).Err(); err != nil {
		return fmt.Errorf("storage: set last broadcast: %w", err)
	}
	return nil
}

// LastBroadcast implements Backend.
func (r *Redis) LastBroadcast(ctx context.Context) (time.Time, bool, error) {
	ts, err := r.client.Get(ctx, r.key("last_broadcast")).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("storage: last broadcast: %w", err)
	}
	return time.Unix(ts, 0), true, nil
}

// Close implements Backend.
func (r *Redis) Close() error {
	return r.client.Close()
}
