// Package cache keeps transformed article bodies between requests.
//
// A Store is a plain key/value store with expiry. Articles layers the
// per-post rules on top: entries are stamped with the output version, and a
// save of the post always wins over a transformation that started before it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"pault.ag/go/debian/version"
)

// DefaultTTL is how long a transformed article is kept.
const DefaultTTL = 7 * 24 * time.Hour

// KeyPrefix starts every article cache key.
const KeyPrefix = "ia_content_"

// Store is a key/value store with per-entry expiry. Get reports a miss for
// absent and expired keys alike.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Purger is implemented by stores that can drop every entry at once.
type Purger interface {
	Purge(ctx context.Context) error
}

// Key returns the cache key of a post's article body.
func Key(postID int64) string {
	return KeyPrefix + strconv.FormatInt(postID, 10)
}

// Entry is what Articles writes to the store.
type Entry struct {
	Version string    `json:"version"`
	Created time.Time `json:"created"`
	Body    string    `json:"body"`
}

// Ticket records the post generation a transformation started at.
type Ticket struct {
	PostID     int64
	generation uint64
	epoch      uint64
}

// Articles caches transformed bodies per post.
type Articles struct {
	Store   Store
	TTL     time.Duration
	Version string
	Logger  *slog.Logger

	// mu orders generation checks against store writes, so an invalidation
	// can not be overwritten by a write that checked before it.
	mu          sync.Mutex
	generations map[int64]uint64
	epoch       uint64
}

// NewArticles returns an article cache over store. A zero ttl means
// DefaultTTL.
func NewArticles(store Store, ttl time.Duration, outputVersion string, logger *slog.Logger) *Articles {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Articles{
		Store:       store,
		TTL:         ttl,
		Version:     outputVersion,
		Logger:      logger,
		generations: make(map[int64]uint64),
	}
}

// Get returns the cached body of a post. Store failures, undecodable
// entries and entries written by an older output version are misses.
func (a *Articles) Get(ctx context.Context, postID int64) (string, bool) {
	if a == nil || a.Store == nil {
		return "", false
	}
	raw, ok, err := a.Store.Get(ctx, Key(postID))
	if err != nil {
		a.logger().Warn("cache read failed", "post", postID, "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		a.logger().Warn("discarding undecodable cache entry", "post", postID, "error", err)
		return "", false
	}
	if a.stale(e.Version) {
		a.logger().Debug("cache entry from older version", "post", postID, "entry", e.Version, "current", a.Version)
		return "", false
	}
	return e.Body, true
}

func (a *Articles) stale(entryVersion string) bool {
	if a.Version == "" {
		return false
	}
	current, err := version.Parse(a.Version)
	if err != nil {
		return false
	}
	got, err := version.Parse(entryVersion)
	if err != nil {
		return true
	}
	return version.Compare(got, current) < 0
}

// Begin must be called before a transformation whose result will be put.
func (a *Articles) Begin(postID int64) Ticket {
	if a == nil {
		return Ticket{PostID: postID}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return Ticket{PostID: postID, generation: a.generations[postID], epoch: a.epoch}
}

// Put stores a body unless the post was invalidated since t was issued.
// It reports whether the body was written.
func (a *Articles) Put(ctx context.Context, t Ticket, body string) bool {
	if a == nil || a.Store == nil {
		return false
	}
	raw, err := json.Marshal(Entry{Version: a.Version, Created: time.Now().UTC(), Body: body})
	if err != nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generations[t.PostID] != t.generation || a.epoch != t.epoch {
		a.logger().Debug("skipping cache write for invalidated post", "post", t.PostID)
		return false
	}
	if err := a.Store.Set(ctx, Key(t.PostID), string(raw), a.TTL); err != nil {
		a.logger().Warn("cache write failed", "post", t.PostID, "error", err)
		return false
	}
	return true
}

// Invalidate drops a post's entry and voids every outstanding ticket for it.
func (a *Articles) Invalidate(ctx context.Context, postID int64) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generations[postID]++
	if a.Store == nil {
		return nil
	}
	if err := a.Store.Delete(ctx, Key(postID)); err != nil {
		return fmt.Errorf("invalidate post %d: %w", postID, err)
	}
	return nil
}

// Purge drops every entry when the store supports it and voids every
// outstanding ticket.
func (a *Articles) Purge(ctx context.Context) error {
	if a == nil {
		return nil
	}
	p, ok := a.Store.(Purger)
	if !ok {
		return fmt.Errorf("cache store %T can not be purged", a.Store)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epoch++
	return p.Purge(ctx)
}

func (a *Articles) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
