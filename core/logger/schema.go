package logger

import "strings"

// Canonical level names written in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

func levelName(level string) string {
	switch strings.ToLower(level) {
	case "":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return strings.ToUpper(level)
}

// knownOutcomes is the closed set accepted in the outcome field.
var knownOutcomes = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true, "expired": true,
}

// normalizeStatus lowercases status; unknown values pass through.
func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	return outcome, knownOutcomes[outcome]
}

// defaultKeyOrder puts identity and correlation fields first, then the
// bot's domain fields, then error details.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "flow", "step", "cb_key", "msg_kind", "outcome",
	"duration_ms", "elapsed_ms",
	"qr_type", "payload", "alias", "short_url", "feature", "enabled", "counter",
	"broadcast_id", "sent", "failed", "total",
	"driver", "backend", "host", "port", "listen", "path", "mode",
	"action", "endpoint", "attempt", "delay_ms",
	"err", "err_code", "error", "error_kind",
}
