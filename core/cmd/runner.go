package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/quicklink/core/config"
	"github.com/m3rciful/quicklink/core/logger"
	coretelegram "github.com/m3rciful/quicklink/core/telegram"

	"golang.org/x/sync/errgroup"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Service is a long-running companion of the bot, such as an HTTP server.
// Run must return nil once ctx is cancelled.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// ServiceApp is implemented by apps that run services next to the bot.
type ServiceApp interface {
	Services() []Service
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath when set.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Context replaces the signal-bound root context, mostly for tests.
	Context context.Context
}

// ResolveConfigPath picks the config path from the explicit value, the env var or the default.
func ResolveConfigPath(opts Options) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// Run loads the configuration, bootstraps the app and runs the bot together
// with the app's services until a signal arrives. The first failure stops all.
func Run(opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	runOpts = withLifecycleLogs(runOpts, time.Now())

	root := opts.Context
	if root == nil {
		root = context.Background()
	}
	ctx, cancel := signal.NotifyContext(root, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	var services []Service
	if sa, ok := app.(ServiceApp); ok {
		services = sa.Services()
	}
	return serve(ctx, cancel, func(ctx context.Context) error { return run(ctx, runOpts) }, services)
}

func loadConfig(opts Options) (ConfigCarrier, error) {
	if opts.LoadConfig == nil {
		return nil, errors.New("cmd: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return nil, errors.New("cmd: Bootstrap is required")
	}
	path, err := ResolveConfigPath(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config %s: %w", path, err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return nil, errors.New("cmd: loaded config is missing core configuration")
	}
	return cfg, nil
}

// withLifecycleLogs adds app.ready and app.shutdown lines around the app's own hooks.
func withLifecycleLogs(opts coretelegram.RunOptions, bootStart time.Time) coretelegram.RunOptions {
	onStart, onStop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready", slog.Duration("startup_duration", time.Since(bootStart)))
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
	return opts
}

// serve runs bot and services in one errgroup. The bot returning, for any
// reason, cancels the services.
func serve(ctx context.Context, cancel context.CancelFunc, bot func(context.Context) error, services []Service) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return bot(gctx)
	})
	for _, svc := range services {
		if svc.Run == nil {
			continue
		}
		g.Go(func() error {
			if err := svc.Run(gctx); err != nil {
				logger.Error(gctx, "app", "service.failed",
					slog.String("service", svc.Name),
					slog.String("err", err.Error()),
				)
				return fmt.Errorf("cmd: service %s: %w", svc.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
