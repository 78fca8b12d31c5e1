package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/quicklink/core/buildinfo"
	coreconfig "github.com/m3rciful/quicklink/core/config"
)

var (
	stateMu sync.Mutex
	started bool
	stopped bool
	sink    *asyncWriter
	files   []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newRatioSampler(defaultSampleNum, defaultSampleDen)
	traceOverride bool

	// L is the base logger every component logger derives from.
	L *slog.Logger
	// DB logs database connection events.
	DB = slog.Default().With("component", "db")
	// MIG logs schema migration events.
	MIG = slog.Default().With("component", "db.migrate")
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// settings is the resolved logging section of the configuration.
type settings struct {
	format    logFormat
	level     slog.Level
	order     []string
	sampleNum int
	sampleDen int
	profile   string
	file      string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		format:    formatJSON,
		level:     slog.LevelInfo,
		order:     append([]string(nil), defaultKeyOrder...),
		sampleNum: defaultSampleNum,
		sampleDen: defaultSampleDen,
		profile:   "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		s.sampleNum, s.sampleDen = parseRatioSpec(spec)
	}

	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && name != "" {
		s.file = filepath.Join(dir, name)
	}
	return s
}

// InitLogger installs the structured logger as the slog default. Only the
// first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	stateMu.Lock()
	defer stateMu.Unlock()
	if started {
		return nil
	}
	started = true

	s := settingsFrom(cfg)
	levelVar.Set(s.level)
	debugSampler.Set(s.sampleNum, s.sampleDen)
	traceOverride = envTruthy("TRACE") || envTruthy("LOG_TRACE")

	outputs := []io.Writer{os.Stdout}
	var openErr error
	if s.file != "" {
		f, err := openLogFile(s.file)
		if err != nil {
			openErr = err
		} else {
			outputs = append(outputs, f)
			files = append(files, f)
		}
	}
	sink = newAsyncWriter(outputs, defaultWriterBuffer)

	L = slog.New(newStructuredHandler(handlerConfig{
		level:    &levelVar,
		writer:   sink,
		format:   s.format,
		keyOrder: s.order,
	}))
	slog.SetDefault(L)
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")

	if openErr != nil {
		Warn(context.Background(), "app", "log.file", slog.String("status", "fail"), slog.String("err", openErr.Error()))
	}
	Info(context.Background(), "app", "startup",
		slog.String("go_version", runtime.Version()),
		slog.String("build", buildinfo.String()),
		slog.String("profile", s.profile),
	)
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Shutdown flushes pending lines and closes the log file. Later calls are no-ops.
func Shutdown() error {
	stateMu.Lock()
	defer stateMu.Unlock()
	if stopped || sink == nil {
		return nil
	}
	stopped = true

	errs := []error{sink.Close()}
	for _, c := range files {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func envTruthy(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
// TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
