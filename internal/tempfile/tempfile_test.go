package tempfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateAndRelease(t *testing.T) {
	var released atomic.Int32
	d := NewDir(t.TempDir(), time.Minute)
	d.OnRelease = func(string) { released.Add(1) }

	f, err := d.Create("qrscan", ".jpg")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(f.Path), "qrscan-") || filepath.Ext(f.Path) != ".jpg" {
		t.Fatalf("path = %s", f.Path)
	}
	if _, err := os.Stat(f.Path); err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if _, err := os.Stat(f.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
	if released.Load() != 1 {
		t.Fatalf("released = %d", released.Load())
	}
}

func TestRetentionRemovesFile(t *testing.T) {
	done := make(chan string, 1)
	d := NewDir(t.TempDir(), 20*time.Millisecond)
	d.OnRelease = func(p string) { done <- p }

	f, err := d.Create("x", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	select {
	case p := <-done:
		if p != f.Path {
			t.Fatalf("released %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retention timer did not fire")
	}
	if _, err := os.Stat(f.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestReleaseConcurrentWithRetention(t *testing.T) {
	var (
		mu    sync.Mutex
		drops int
	)
	d := NewDir(t.TempDir(), time.Millisecond)
	d.OnRelease = func(string) {
		mu.Lock()
		drops++
		mu.Unlock()
	}
	for i := 0; i < 50; i++ {
		f, err := d.Create("x", ".png")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := f.Release(); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if drops != 50 {
		t.Fatalf("drops = %d, want one per file", drops)
	}
}
