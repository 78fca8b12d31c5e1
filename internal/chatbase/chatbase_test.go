package chatbase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAskSendsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ChatbotID != "bot" || len(req.Messages) != 1 || req.Messages[0].Content != "hi" || req.Messages[0].Role != "user" {
			t.Errorf("payload = %+v", req)
		}
		_, _ = w.Write([]byte(`{"text":"hello back"}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "key", "bot", time.Second).Ask(context.Background(), "hi")
	if err != nil || got != "hello back" {
		t.Fatalf("got %q %v", got, err)
	}
}

func TestAskFallsBackToLastMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[{"content":"first"},{"content":"last"}]}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "key", "bot", time.Second).Ask(context.Background(), "hi")
	if err != nil || got != "last" {
		t.Fatalf("got %q %v", got, err)
	}
}

func TestAskEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", "bot", time.Second).Ask(context.Background(), "hi")
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("err = %v", err)
	}
}

func TestAskNotConfigured(t *testing.T) {
	_, err := New("", "", "", time.Second).Ask(context.Background(), "hi")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}
