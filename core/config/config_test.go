package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeRequiresToken(t *testing.T) {
	if err := Normalize(&Config{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: " Polling "}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.Telegram.SenderWorkers != 1 {
		t.Fatalf("sender workers = %d, want 1", cfg.Telegram.SenderWorkers)
	}
}

func TestNormalizeWebhookNeedsURL(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: "webhook"}}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected webhook validation error")
	}
}

func TestNormalizeRejectsUnknownExclude(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback ", "poll"}},
	}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown update kind")
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("telegram:\n  token: from-yaml\n  admin_id: 42\nrate_limit:\n  interval_ms: 300\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, env should win", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminID != 42 {
		t.Fatalf("admin id = %d, want 42", cfg.Telegram.AdminID)
	}
	if cfg.RateLimit.IntervalMS != 300 {
		t.Fatalf("interval = %d, want 300", cfg.RateLimit.IntervalMS)
	}
}

func TestLoadMissingFileIsAllowed(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-only")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "env-only" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestNormalizeReportsEveryWebhookField(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: "WEBHOOK"}}
	err := Normalize(cfg)
	if err == nil {
		t.Fatal("expected webhook validation error")
	}
	for _, want := range []string{"webhook.url", "webhook.listen", "webhook.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestNormalizeCleansExcludes(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x"},
		RateLimit: RateLimitConfig{IntervalMS: -5, ExcludeUpdates: []string{" Callback ", "", "MESSAGE"}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	got := cfg.RateLimit.ExcludeUpdates
	if len(got) != 2 || got[0] != UpdateCallback || got[1] != UpdateMessage {
		t.Fatalf("excludes = %v", got)
	}
	if cfg.RateLimit.IntervalMS != 0 {
		t.Fatalf("interval = %d, want 0", cfg.RateLimit.IntervalMS)
	}
}
