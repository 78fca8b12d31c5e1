package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadRequiresOwner(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: t\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error without owner id")
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: t\n  admin_id: 77\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CoreConfig().Telegram.AdminID != 77 {
		t.Fatalf("admin = %d", cfg.Telegram.AdminID)
	}
	if cfg.Storage.Driver != DriverAuto {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.QR.Size != 1000 || cfg.Flows.ScanTimeout != time.Minute || cfg.Flows.Retention != 5*time.Minute {
		t.Fatalf("qr/flows defaults: %+v %+v", cfg.QR, cfg.Flows)
	}
	if cfg.Broadcast.Budget != 300*time.Second || cfg.Broadcast.MinDelay != 50*time.Millisecond || cfg.Broadcast.MaxDelay != 2*time.Second {
		t.Fatalf("broadcast defaults: %+v", cfg.Broadcast)
	}
	if cfg.Status.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.Status.Listen)
	}
}

func TestLoadNestedYAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `telegram:
  token: t
  admin_id: 1
storage:
  driver: Redis
  redis_url: redis://localhost:6379/0
shortener:
  timeout: 3s
broadcast:
  budget: 10s
`)
	t.Setenv("QUICKLINK_API_KEY", "key-from-env")
	t.Setenv("PORT", "9090")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != DriverRedis || cfg.Storage.RedisURL == "" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Shortener.APIKey != "key-from-env" || cfg.Shortener.Timeout != 3*time.Second {
		t.Fatalf("shortener = %+v", cfg.Shortener)
	}
	if cfg.Broadcast.Budget != 10*time.Second {
		t.Fatalf("budget = %v", cfg.Broadcast.Budget)
	}
	if cfg.Status.Listen != ":9090" {
		t.Fatalf("listen = %q", cfg.Status.Listen)
	}
}

func TestNormalizeRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Telegram.AdminID = 1
	cfg.Storage.Driver = "sqlite"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected driver error")
	}
}
