package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func exerciseStore(t *testing.T, s Store, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "k", "v1", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", "v2", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := s.Get(ctx, "k"); !ok || err != nil || v != "v2" {
		t.Fatalf("expected v2, got %q ok=%v err=%v", v, ok, err)
	}

	clock.Advance(time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}

	if err := s.Set(ctx, "gone", "x", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("deleting a missing key should succeed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "gone"); ok {
		t.Fatal("deleted entry still present")
	}

	_ = s.Set(ctx, "a", "1", 0)
	_ = s.Set(ctx, "b", "2", 0)
	if err := s.(Purger).Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatal("purge left entries behind")
	}
}

func TestMemoryStore(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewMemoryStore()
	s.now = clock.Now
	exerciseStore(t, s, clock)
}

func TestFSStore(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewFSStore(filepath.Join(t.TempDir(), "cache"))
	s.now = clock.Now
	exerciseStore(t, s, clock)
}

func TestFSStoreOverwritesDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	s := NewFSStore(dir)
	dest := s.path("k")

	if err := os.Symlink(filepath.Join(dir, "nonexistent"), dest); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), "k", "hello", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Lstat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Fatal("expected regular file, got symlink")
	}
	if v, ok, _ := s.Get(context.Background(), "k"); !ok || v != "hello" {
		t.Fatalf("got %q, want %q", v, "hello")
	}
}

func TestArticlesRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewArticles(NewMemoryStore(), 0, "1.0-1", discard())
	if a.TTL != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", a.TTL)
	}
	if _, ok := a.Get(ctx, 5); ok {
		t.Fatal("expected miss")
	}
	if !a.Put(ctx, a.Begin(5), "<p>body</p>") {
		t.Fatal("put should succeed")
	}
	if got, ok := a.Get(ctx, 5); !ok || got != "<p>body</p>" {
		t.Fatalf("expected cached body, got %q ok=%v", got, ok)
	}
}

func TestInvalidateBeatsRacingWrite(t *testing.T) {
	ctx := context.Background()
	a := NewArticles(NewMemoryStore(), time.Hour, "", discard())

	ticket := a.Begin(7)
	if err := a.Invalidate(ctx, 7); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if a.Put(ctx, ticket, "stale") {
		t.Fatal("write that started before the invalidation must be dropped")
	}
	if _, ok := a.Get(ctx, 7); ok {
		t.Fatal("stale body cached")
	}
	if !a.Put(ctx, a.Begin(7), "fresh") {
		t.Fatal("a new ticket should write")
	}
}

func TestOlderVersionIsStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	old := NewArticles(store, time.Hour, "1.2-1", discard())
	old.Put(ctx, old.Begin(1), "v1 body")

	tests := []struct {
		version string
		hit     bool
	}{
		{"1.2-1", true},
		{"1.2-1~beta", true},
		{"1.10-1", false},
		{"1:0.1-1", false},
	}
	for _, tt := range tests {
		a := NewArticles(store, time.Hour, tt.version, discard())
		if _, ok := a.Get(ctx, 1); ok != tt.hit {
			t.Fatalf("version %s: expected hit=%v", tt.version, tt.hit)
		}
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("down")
}
func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("down")
}
func (brokenStore) Delete(context.Context, string) error { return errors.New("down") }

func TestStoreFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	a := NewArticles(brokenStore{}, time.Hour, "", discard())
	if _, ok := a.Get(ctx, 1); ok {
		t.Fatal("expected miss")
	}
	if a.Put(ctx, a.Begin(1), "x") {
		t.Fatal("expected failed put")
	}
	if err := a.Invalidate(ctx, 1); err == nil {
		t.Fatal("expected invalidate error")
	}
	if err := a.Purge(ctx); err == nil {
		t.Fatal("expected purge to be unsupported")
	}
}

func TestPurgeVoidsOutstandingTickets(t *testing.T) {
	ctx := context.Background()
	a := NewArticles(NewMemoryStore(), time.Hour, "", discard())
	ticket := a.Begin(7)
	if err := a.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if a.Put(ctx, ticket, "rendered with old rules") {
		t.Fatal("expected put with a pre-purge ticket to be refused")
	}
	if !a.Put(ctx, a.Begin(7), "fresh") {
		t.Fatal("expected put with a new ticket to succeed")
	}
}
