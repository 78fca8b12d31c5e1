package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/m3rciful/quicklink/internal/config"
)

func TestOpenFileDriver(t *testing.T) {
	b, err := Open(context.Background(), config.StorageConfig{
		Driver:   config.DriverFile,
		FilePath: filepath.Join(t.TempDir(), "s.json"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()
	if b.Name() != "file" {
		t.Fatalf("driver = %s", b.Name())
	}
}

func TestOpenAutoWithoutNetworkUsesFile(t *testing.T) {
	b, err := Open(context.Background(), config.StorageConfig{
		Driver:   config.DriverAuto,
		FilePath: filepath.Join(t.TempDir(), "s.json"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if b.Name() != "file" {
		t.Fatalf("driver = %s", b.Name())
	}
}

func TestOpenRedisFailureFallsBack(t *testing.T) {
	b, err := Open(context.Background(), config.StorageConfig{
		Driver:   config.DriverRedis,
		RedisURL: "not a redis url",
		FilePath: filepath.Join(t.TempDir(), "s.json"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if b.Name() != "file" {
		t.Fatalf("driver = %s, want file fallback", b.Name())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "mongo"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v", err)
	}
}
