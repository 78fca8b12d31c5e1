// Package shortener calls the QuickLink URL shortening API.
package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/quicklink/core/netutil"
)

// DefaultEndpoint is the public QuickLink shorten endpoint.
const DefaultEndpoint = "https://quick-link-url-shortener.vercel.app/api/v1/st"

// ErrShorten wraps every service-reported failure. The message is the
// text the service returned, suitable for showing to the user as is.
var ErrShorten = errors.New("shortener: request failed")

// Error carries the service message of a failed shorten call.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets errors.Is match ErrShorten.
func (e *Error) Unwrap() error { return ErrShorten }

// Client performs one GET per shorten attempt, without retries.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
}

// New returns a client; an empty endpoint selects DefaultEndpoint.
func New(endpoint, apiKey string, timeout time.Duration) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		http:     netutil.NewClient(netutil.ClientOptions{Timeout: timeout}),
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

type response struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	ShortURL     string `json:"shortUrl"`
	Message      string `json:"message"`
}

// Shorten returns the short URL for long. An empty alias asks the service for a random one.
func (c *Client) Shorten(ctx context.Context, long, alias string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("shortener: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api", c.apiKey)
	q.Set("url", long)
	if alias != "" {
		q.Set("alias", alias)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("shortener: request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Message: err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Message: err.Error()}
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return "", &Error{Message: msg}
	}
	short := out.ShortenedURL
	if short == "" {
		short = out.ShortURL
	}
	if !strings.EqualFold(out.Status, "success") || short == "" {
		msg := strings.TrimSpace(out.Message)
		if msg == "" {
			msg = "Unknown"
		}
		return "", &Error{Message: msg}
	}
	return short, nil
}
