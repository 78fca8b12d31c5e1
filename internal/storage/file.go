package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	fileDirPerm  os.FileMode = 0o700
	fileFilePerm os.FileMode = 0o600
)

type fileDocument struct {
	Users         []int64          `json:"users"`
	Stats         map[string]int64 `json:"stats"`
	LastURLs      []URLEntry       `json:"last_urls"`
	Features      map[string]bool  `json:"features"`
	LastBroadcast *int64           `json:"last_broadcast,omitempty"`
}

// FileStore keeps everything in one JSON document rewritten atomically on each change.
type FileStore struct {
	path string

	mu  sync.Mutex
	doc fileDocument
}

// OpenFile loads path, creating an empty document when it does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage: file path is required")
	}
	s := &FileStore{path: filepath.Clean(path)}
	found, err := readJSON(s.path, &s.doc)
	if err != nil {
		return nil, err
	}
	s.doc.ensure()
	if !found {
		if err := s.flush(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (d *fileDocument) ensure() {
	if d.Stats == nil {
		d.Stats = map[string]int64{}
	}
	if d.Features == nil {
		d.Features = map[string]bool{}
	}
	if d.Users == nil {
		d.Users = []int64{}
	}
	if d.LastURLs == nil {
		d.LastURLs = []URLEntry{}
	}
}

func (s *FileStore) Name() string { return "file" }

// RegisterUser implements Backend.
func (s *FileStore) RegisterUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.doc.Users {
		if u == id {
			return nil
		}
	}
	s.doc.Users = append(s.doc.Users, id)
	return s.flush()
}

// Users implements Backend.
func (s *FileStore) Users(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]int64(nil), s.doc.Users...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Increment implements Backend.
func (s *FileStore) Increment(_ context.Context, c Counter, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Stats[string(c)] += n
	return s.flush()
}

// Stats implements Backend.
func (s *FileStore) Stats(_ context.Context) (map[Counter]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Counter]int64, len(s.doc.Stats))
	for k, v := range s.doc.Stats {
		out[Counter(k)] = v
	}
	return out, nil
}

// PushURL implements Backend.
func (s *FileStore) PushURL(_ context.Context, u string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]URLEntry{{URL: u, TS: at.Unix()}}, s.doc.LastURLs...)
	if len(entries) > RecentURLCap {
		entries = entries[:RecentURLCap]
	}
	s.doc.LastURLs = entries
	return s.flush()
}

// RecentURLs implements Backend.
func (s *FileStore) RecentURLs(_ context.Context, n int) ([]URLEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = clampRecent(n)
	if n > len(s.doc.LastURLs) {
		n = len(s.doc.LastURLs)
	}
	return append([]URLEntry(nil), s.doc.LastURLs[:n]...), nil
}

// SetFeature implements Backend.
func (s *FileStore) SetFeature(_ context.Context, f Feature, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Features[string(f)] = on
	return s.flush()
}

// Features implements Backend.
func (s *FileStore) Features(_ context.Context) (map[Feature]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Feature]bool, len(s.doc.Features))
	for k, v := range s.doc.Features {
		out[Feature(k)] = v
	}
	return out, nil
}

// SetLastBroadcast implements Backend.
func (s *FileStore) SetLastBroadcast(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := at.Unix()
	s.doc.LastBroadcast = &ts
	return s.flush()
}

// LastBroadcast implements Backend.
func (s *FileStore) LastBroadcast(_ context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.LastBroadcast == nil {
		return time.Time{}, false, nil
	}
	return time.Unix(*s.doc.LastBroadcast, 0), true, nil
}

// Close implements Backend.
func (s *FileStore) Close() error { return nil }

// flush must be called with mu held.
func (s *FileStore) flush() error {
	return writeJSONAtomic(s.path, s.doc)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, fileDirPerm); err != nil {
		return fmt.Errorf("storage: ensure dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("storage: create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: sync temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(fileFilePerm); err != nil {
		return fmt.Errorf("storage: chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("storage: rename temp for %s: %w", path, err)
	}
	return nil
}
