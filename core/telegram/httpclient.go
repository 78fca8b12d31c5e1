package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/quicklink/core/netutil"
)

const (
	defaultClientTimeout = 30 * time.Second
	defaultRetryAttempts = 3
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// The long-poll timeout is added on top so getUpdates never trips the client deadline.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	return netutil.NewClient(netutil.ClientOptions{
		Timeout:    defaultClientTimeout + pollTimeout,
		MaxRetries: defaultRetryAttempts,
	})
}
