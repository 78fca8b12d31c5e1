// Package qrapi decodes QR images through the api.qrserver.com read endpoint.
package qrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/m3rciful/quicklink/core/netutil"
)

// DefaultEndpoint is the public read-qr-code API.
const DefaultEndpoint = "https://api.qrserver.com/v1/read-qr-code/"

// ErrNoSymbols is returned when the service finds no readable symbol.
var ErrNoSymbols = errors.New("qrapi: no symbols decoded")

// Client posts images to the decode service.
type Client struct {
	http     *http.Client
	endpoint string
}

// New returns a client; an empty endpoint selects DefaultEndpoint.
func New(endpoint string, timeout time.Duration) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		http:     netutil.NewClient(netutil.ClientOptions{Timeout: timeout}),
		endpoint: endpoint,
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

type symbol struct {
	Data  *string `json:"data"`
	Error *string `json:"error"`
}

type result struct {
	Symbol []symbol `json:"symbol"`
}

// DecodeFile uploads the image at path as the "file" form field.
func (c *Client) DecodeFile(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("qrapi: read image: %w", err)
	}
	return c.Decode(ctx, data)
}

// Decode uploads image and returns the decoded texts in response order.
func (c *Client) Decode(ctx context.Context, image []byte) ([]string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "qr.png")
	if err != nil {
		return nil, fmt.Errorf("qrapi: build form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("qrapi: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("qrapi: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("qrapi: request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qrapi: request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("qrapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qrapi: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var results []result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("qrapi: decode response: %w", err)
	}
	var out []string
	for _, r := range results {
		for _, s := range r.Symbol {
			if s.Data == nil {
				continue
			}
			if v := strings.TrimSpace(*s.Data); v != "" {
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	return out, nil
}
