package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	coredatabase "github.com/m3rciful/quicklink/core/database"
	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/internal/config"
)

// Open selects the backend once at startup. A networked driver that cannot be
// reached falls back to the JSON file with a warning; only a broken file store fails.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = config.DriverAuto
	}

	var candidates []string
	switch driver {
	case config.DriverAuto:
		if cfg.Postgres.Configured() {
			candidates = append(candidates, config.DriverPostgres)
		}
		if strings.TrimSpace(cfg.RedisURL) != "" {
			candidates = append(candidates, config.DriverRedis)
		}
	case config.DriverPostgres, config.DriverRedis:
		candidates = append(candidates, driver)
	case config.DriverFile:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	for _, name := range candidates {
		b, err := openNetworked(ctx, name, cfg)
		if err == nil {
			logger.Info(ctx, "store", "store.open", slog.String("driver", name))
			return b, nil
		}
		logger.Warn(ctx, "store", "store.fallback",
			slog.String("driver", name),
			slog.String("err", err.Error()),
		)
	}

	fs, err := OpenFile(cfg.FilePath)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "store", "store.open",
		slog.String("driver", fs.Name()),
		slog.String("path", cfg.FilePath),
	)
	return fs, nil
}

func openNetworked(ctx context.Context, name string, cfg config.StorageConfig) (Backend, error) {
	switch name {
	case config.DriverPostgres:
		if !cfg.Postgres.Configured() {
			return nil, fmt.Errorf("%w: postgres host and name are required", ErrNotConfigured)
		}
		db, err := coredatabase.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := coredatabase.RunMigrations(cfg.Postgres); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewPostgres(db), nil
	case config.DriverRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return nil, fmt.Errorf("%w: redis_url is required", ErrNotConfigured)
		}
		return OpenRedis(ctx, cfg.RedisURL, cfg.KeyPrefix)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
}
