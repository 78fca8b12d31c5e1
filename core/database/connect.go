package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/quicklink/core/logger"
)

const (
	pingTimeout  = 5 * time.Second
	pingInterval = 2 * time.Second
	// readyTimeout bounds how long Connect waits for a starting server.
	readyTimeout = 30 * time.Second
)

// Connect opens a pooled Postgres handle and waits until the server answers.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	cfg = cfg.withDefaults()
	attrs := []slog.Attr{
		slog.String("driver", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	start := time.Now()
	attempts, err := waitReady(ctx, db, readyTimeout)
	attrs = append(attrs, slog.Int("attempt", attempts), slog.Duration("duration", time.Since(start)))
	if err != nil {
		_ = db.Close()
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(attrs, slog.String("status", "ok"), slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// waitReady pings db until it answers, ctx ends or timeout passes, and
// returns the number of pings made.
func waitReady(ctx context.Context, db *sqlx.DB, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		if !time.Now().Add(pingInterval).Before(deadline) {
			return attempt, fmt.Errorf("database not ready after %s: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(pingInterval):
		}
	}
}
