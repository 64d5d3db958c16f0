package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FSStore keeps one file per entry under Root.
type FSStore struct {
	Root string
	now  func() time.Time
}

type fsRecord struct {
	Key     string    `json:"key"`
	Expires time.Time `json:"expires,omitzero"`
	Value   string    `json:"value"`
}

func NewFSStore(root string) *FSStore {
	return &FSStore{Root: root, now: time.Now}
}

func (s *FSStore) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read cache file: %w", err)
	}
	var rec fsRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Key != key {
		return "", false, nil
	}
	if !rec.Expires.IsZero() && !s.clock().Before(rec.Expires) {
		_ = os.Remove(s.path(key))
		return "", false, nil
	}
	return rec.Value, true, nil
}

func (s *FSStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	rec := fsRecord{Key: key, Value: value}
	if ttl > 0 {
		rec.Expires = s.clock().Add(ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return s.writeFileAbsolute(s.path(key), data)
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

func (s *FSStore) Purge(context.Context) error {
	entries, err := os.ReadDir(s.Root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.Root, e.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purge: %w", err)
		}
	}
	return nil
}

func (s *FSStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.Root, hex.EncodeToString(sum[:])+".json")
}

func (s *FSStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *FSStore) writeFileAbsolute(fullPath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close file: %w", err)
	}
	// Rename replaces an existing file or symlink instead of following it.
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
