package bootstrap

import (
	"context"
	"fmt"
	"io"

	coreconfig "github.com/m3rciful/quicklink/core/config"
	"github.com/m3rciful/quicklink/core/logger"
)

// Options control the generic bootstrap pipeline: logger, storage, seeders.
type Options[S io.Closer] struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	// Open selects and opens the storage backend.
	Open    func(ctx context.Context) (S, error)
	Modules Modules[S]
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result[S io.Closer] struct {
	Storage S
}

// Run initializes the logger, opens storage, and runs the seeders in order.
func Run[S io.Closer](ctx context.Context, opts Options[S]) (*Result[S], error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	if opts.Open == nil {
		return nil, fmt.Errorf("bootstrap: storage opener is required")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	store, err := opts.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: storage initialization failed: %w", err)
	}

	for i, s := range opts.Modules.Seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, store); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
	}

	return &Result[S]{Storage: store}, nil
}
