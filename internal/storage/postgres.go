package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

const metaLastBroadcast = "last_broadcast"

// Postgres is the sqlx backed driver; the schema comes from the migrations directory.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Name() string { return "postgres" }

// RegisterUser implements Backend.
func (p *Postgres) RegisterUser(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, created_at) VALUES ($1, now()) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("storage: register user: %w", err)
	}
	return nil
}

// Users implements Backend.
func (p *Postgres) Users(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := p.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	return ids, nil
}

// Increment implements Backend.
func (p *Postgres) Increment(ctx context.Context, c Counter, n int64) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO stats (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = stats.value + EXCLUDED.value`,
		string(c), n)
	if err != nil {
		return fmt.Errorf("storage: increment %s: %w", c, err)
	}
	return nil
}

type statRow struct {
	Name  string `db:"name"`
	Value int64  `db:"value"`
}

// Stats implements Backend.
func (p *Postgres) Stats(ctx context.Context) (map[Counter]int64, error) {
	var rows []statRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT name, value FROM stats`); err != nil {
		return nil, fmt.Errorf("storage: stats: %w", err)
	}
	out := make(map[Counter]int64, len(rows))
	for _, r := range rows {
		out[Counter(r.Name)] = r.Value
	}
	return out, nil
}

// PushURL implements Backend. Insert and trim run in one transaction.
func (p *Postgres) PushURL(ctx context.Context, u string, at time.Time) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: push url: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO urls (url, ts) VALUES ($1, $2)`, u, at.Unix()); err != nil {
		return fmt.Errorf("storage: push url: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM urls WHERE id NOT IN (SELECT id FROM urls ORDER BY id DESC LIMIT $1)`,
		RecentURLCap); err != nil {
		return fmt.Errorf("storage: trim urls: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: push url commit: %w", err)
	}
	return nil
}

// RecentURLs implements Backend.
func (p *Postgres) RecentURLs(ctx context.Context, n int) ([]URLEntry, error) {
	var out []URLEntry
	err := p.db.SelectContext(ctx, &out,
		`SELECT url, ts FROM urls ORDER BY id DESC LIMIT $1`, clampRecent(n))
	if err != nil {
		return nil, fmt.Errorf("storage: recent urls: %w", err)
	}
	return out, nil
}

// SetFeature implements Backend.
func (p *Postgres) SetFeature(ctx context.Context, f Feature, on bool) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO features (name, enabled) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled`,
		string(f), on)
	if err != nil {
		return fmt.Errorf("storage: set feature %s: %w", f, err)
	}
	return nil
}

type featureRow struct {
	Name    string `db:"name"`
	Enabled bool   `db:"enabled"`
}

// Features implements Backend.
func (p *Postgres) Features(ctx context.Context) (map[Feature]bool, error) {
	var rows []featureRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT name, enabled FROM features`); err != nil {
		return nil, fmt.Errorf("storage: features: %w", err)
	}
	out := make(map[Feature]bool, len(rows))
	for _, r := range rows {
		out[Feature(r.Name)] = r.Enabled
	}
	return out, nil
}

// SetLastBroadcast implements Backend.
func (p *Postgres) SetLastBroadcast(ctx context.Context, at time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		metaLastBroadcast, strconv.FormatInt(at.Unix(), 10))
	if err != nil {
		return fmt.Errorf("storage: set last broadcast: %w", err)
	}
	return nil
}

// LastBroadcast implements Backend.
func (p *Postgres) LastBroadcast(ctx context.Context) (time.Time, bool, error) {
	var raw string
	err := p.db.GetContext(ctx, &raw, `SELECT value FROM meta WHERE key = $1`, metaLastBroadcast)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("storage: last broadcast: %w", err)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("storage: last broadcast value %q: %w", raw, err)
	}
	return time.Unix(ts, 0), true, nil
}

// Close implements Backend.
func (p *Postgres) Close() error {
	return p.db.Close()
}
