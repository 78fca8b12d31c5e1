package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/quicklink/internal/config"
	"github.com/m3rciful/quicklink/internal/storage"
)

func newServer(t *testing.T) (*Server, *storage.BestEffort) {
	t.Helper()
	fs, err := storage.OpenFile(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store := storage.NewBestEffort(fs)
	cfg := config.StatusConfig{ContactName: "Support", ContactURL: "https://t.me/support"}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(cfg, store, now.Add(-time.Hour))
	s.now = func() time.Time { return now }
	return s, store
}

func TestHealthz(t *testing.T) {
	s, _ := newServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestIndexShowsCounters(t *testing.T) {
	s, store := newServer(t)
	ctx := context.Background()
	store.Increment(ctx, storage.CounterShorten)
	store.Increment(ctx, storage.CounterQRGen)
	store.Increment(ctx, storage.CounterQRGen)
	store.PushURL(ctx, "https://ql.ink/a", time.Now())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Uptime: 01h 00m 00s",
		"Shortens: 1",
		"QR Generated: 2",
		"QR Scanned: 0",
		"https://ql.ink/a",
		"Last broadcast: never",
		`<a href="https://t.me/support">Support</a>`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newServer(t)
	s.cfg.Listen = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
