// Package chatbase relays a single user message to a Chatbase chatbot.
package chatbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/quicklink/core/netutil"
)

// DefaultEndpoint is the Chatbase chat API.
const DefaultEndpoint = "https://www.chatbase.co/api/v1/chat"

var (
	// ErrNotConfigured is returned when the API key or bot id is missing.
	ErrNotConfigured = errors.New("chatbase: not configured")
	// ErrEmptyReply is returned when the response carries no text.
	ErrEmptyReply = errors.New("chatbase: empty reply")
)

// Client talks to the chat endpoint with bearer auth.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	botID    string
}

// New returns a client; an empty endpoint selects DefaultEndpoint.
func New(endpoint, apiKey, botID string, timeout time.Duration) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		http:     netutil.NewClient(netutil.ClientOptions{Timeout: timeout}),
		endpoint: endpoint,
		apiKey:   apiKey,
		botID:    botID,
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.botID != ""
}

type message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type request struct {
	Messages  []message `json:"messages"`
	ChatbotID string    `json:"chatbotId"`
}

type reply struct {
	Text     string    `json:"text"`
	Message  string    `json:"message"`
	Response string    `json:"response"`
	Messages []message `json:"messages"`
}

// Ask sends text as a user message and returns the bot reply.
func (c *Client) Ask(ctx context.Context, text string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	payload, err := json.Marshal(request{
		Messages:  []message{{Content: text, Role: "user"}},
		ChatbotID: c.botID,
	})
	if err != nil {
		return "", fmt.Errorf("chatbase: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("chatbase: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chatbase: request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("chatbase: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chatbase: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out reply
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("chatbase: decode response: %w", err)
	}
	for _, v := range []string{out.Text, out.Message, out.Response} {
		if s := strings.TrimSpace(v); s != "" {
			return s, nil
		}
	}
	if n := len(out.Messages); n > 0 {
		if s := strings.TrimSpace(out.Messages[n-1].Content); s != "" {
			return s, nil
		}
	}
	return "", ErrEmptyReply
}
