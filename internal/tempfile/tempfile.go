// Package tempfile manages downloaded images that live only as long as the
// conversation that owns them.
package tempfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// File is a scoped temporary file. Release removes it and is idempotent.
// A retention timer removes the file even if no owner releases it.
type File struct {
	Path      string
	CreatedAt time.Time
	ExpiresAt time.Time

	once   sync.Once
	mu     sync.Mutex
	timer  *time.Timer
	err    error
	onDrop func(path string)
}

// Dir creates temp files below a base directory.
type Dir struct {
	base      string
	retention time.Duration
	// OnRelease, when set, is called once per removed file.
	OnRelease func(path string)
}

// NewDir uses base, or the OS temp dir when base is empty.
func NewDir(base string, retention time.Duration) *Dir {
	if base == "" {
		base = os.TempDir()
	}
	return &Dir{base: base, retention: retention}
}

// Create reserves a new empty file named <prefix>-<uuid><ext>.
func (d *Dir) Create(prefix, ext string) (*File, error) {
	if err := os.MkdirAll(d.base, 0o700); err != nil {
		return nil, fmt.Errorf("tempfile: ensure dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext)
	path := filepath.Join(d.base, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("tempfile: create: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("tempfile: create: %w", err)
	}

	now := time.Now()
	tf := &File{Path: path, CreatedAt: now, onDrop: d.OnRelease}
	if d.retention > 0 {
		tf.ExpiresAt = now.Add(d.retention)
		tf.mu.Lock()
		tf.timer = time.AfterFunc(d.retention, func() { _ = tf.remove() })
		tf.mu.Unlock()
	}
	return tf, nil
}

// Release removes the file. Calls after the first return the first result.
func (f *File) Release() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.mu.Unlock()
	return f.remove()
}

// remove is shared by Release and the retention timer; it never touches timer.
func (f *File) remove() error {
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.err = fmt.Errorf("tempfile: remove: %w", err)
		}
		if f.onDrop != nil {
			f.onDrop(f.Path)
		}
	})
	return f.err
}
