package shortener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestShortenSendsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api") != "k" || q.Get("url") != "https://example.com/a?b=c" {
			t.Errorf("query = %v", q)
		}
		if _, ok := q["alias"]; ok {
			t.Errorf("alias should be omitted: %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"success","shortenedUrl":"https://ql.example/x1"}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "k", time.Second).Shorten(context.Background(), "https://example.com/a?b=c", "")
	if err != nil {
		t.Fatalf("shorten: %v", err)
	}
	if got != "https://ql.example/x1" {
		t.Fatalf("got %q", got)
	}
}

func TestShortenAcceptsShortURLKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alias") != "mine" {
			t.Errorf("alias = %q", r.URL.Query().Get("alias"))
		}
		_, _ = w.Write([]byte(`{"status":"success","shortUrl":"https://ql.example/mine"}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "", time.Second).Shorten(context.Background(), "https://e.com", "mine")
	if err != nil || got != "https://ql.example/mine" {
		t.Fatalf("got %q %v", got, err)
	}
}

func TestShortenReturnsServiceMessage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":"error","message":"Alias already taken"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Shorten(context.Background(), "https://e.com", "taken")
	if !errors.Is(err, ErrShorten) {
		t.Fatalf("err = %v", err)
	}
	if err.Error() != "Alias already taken" {
		t.Fatalf("message = %q", err.Error())
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want a single attempt", calls)
	}
}

func TestShortenUnknownFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Shorten(context.Background(), "https://e.com", "")
	if err == nil || err.Error() != "Unknown" {
		t.Fatalf("err = %v", err)
	}
}

func TestShortenPlainTextErrorIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("Alias already taken\n"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Shorten(context.Background(), "https://e.com", "taken")
	if !errors.Is(err, ErrShorten) || err.Error() != "Alias already taken" {
		t.Fatalf("err = %v", err)
	}
}

func TestShortenEmptyBodyReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Shorten(context.Background(), "https://e.com", "")
	if err == nil || err.Error() != "HTTP 502" {
		t.Fatalf("err = %v", err)
	}
}
