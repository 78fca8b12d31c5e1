package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/quicklink/core/logger"
	tghelpers "github.com/m3rciful/quicklink/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Outcomes reported in handler.handled lines.
const (
	outcomeOK   = "ok"
	outcomeFail = "fail"
	outcomeSkip = "skip"
)

// handleWithSummary tags the context with the handler name, runs fn and logs
// one handler.handled line with its outcome and duration.
func handleWithSummary(c tele.Context, handler string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handler)
	err := fn()
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeFail
	}
	logHandlerSummary(c, handler, start, outcome, err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, handler string, start time.Time, outcome string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handler)
	level := slog.LevelInfo
	attrs := make([]slog.Attr, 0, 6+len(extras))
	attrs = append(attrs,
		slog.String("status", outcome),
		slog.String("handler", handler),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorCode names err for log aggregation: an explicit Code() wins, then the
// type name of the innermost wrapped error.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
