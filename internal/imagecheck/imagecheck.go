// Package imagecheck confirms that image URLs resolve before they are
// published. Checks run concurrently with a bounded pool, a per-check
// timeout and an optional request rate limit; callers get every verdict at
// once and apply removals afterwards.
package imagecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 8
	DefaultAttempts    = 2
)

// Checker reports, for each URL, whether it is reachable.
type Checker interface {
	Check(ctx context.Context, urls []string) map[string]bool
}

// Func adapts a per-URL predicate to a Checker. Calls are sequential.
type Func func(ctx context.Context, rawURL string) bool

// Check implements Checker.
func (f Func) Check(ctx context.Context, urls []string) map[string]bool {
	out := make(map[string]bool, len(urls))
	for _, u := range urls {
		if _, done := out[u]; !done {
			out[u] = f(ctx, u)
		}
	}
	return out
}

// HTTPChecker issues HEAD requests, falling back to a one-byte ranged GET
// for servers that refuse HEAD. Only a 2xx answer counts as reachable;
// transport errors are retried, status codes are not.
type HTTPChecker struct {
	Client      *http.Client
	Timeout     time.Duration
	Concurrency int
	Attempts    int
	Limiter     *rate.Limiter
	UserAgent   string
	Logger      *slog.Logger
}

// New returns an HTTPChecker. A non-positive rps disables rate limiting.
func New(timeout time.Duration, concurrency int, rps float64, burst int) *HTTPChecker {
	c := &HTTPChecker{
		Client:      http.DefaultClient,
		Timeout:     timeout,
		Concurrency: concurrency,
		Attempts:    DefaultAttempts,
		UserAgent:   "instant-articles-imagecheck/1.0",
	}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

// Check implements Checker. Duplicate URLs are checked once.
func (c *HTTPChecker) Check(ctx context.Context, urls []string) map[string]bool {
	var unique []string
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]bool, len(unique))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, u := range unique {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if c.Limiter != nil {
				if err := c.Limiter.Wait(ctx); err != nil {
					return
				}
			}
			ok, err := c.reachable(ctx, rawURL)
			if err != nil {
				c.logger().Debug("image not reachable", "url", rawURL, "error", err)
			}
			results[idx] = ok
		}(i, u)
	}
	wg.Wait()

	out := make(map[string]bool, len(unique))
	for i, u := range unique {
		out[u] = results[i]
	}
	return out
}

func (c *HTTPChecker) reachable(ctx context.Context, rawURL string) (bool, error) {
	if strings.HasPrefix(rawURL, "data:image/") {
		return true, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return false, fmt.Errorf("unsupported image URL %q", rawURL)
	}

	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			c.logger().Debug("retrying image check", "url", rawURL, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
		status, err := c.probe(ctx, http.MethodHead, rawURL)
		if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
			status, err = c.probe(ctx, http.MethodGet, rawURL)
		}
		if err == nil {
			if status >= 200 && status < 300 {
				return true, nil
			}
			return false, fmt.Errorf("status %d", status)
		}
		lastErr = err
		if ctx.Err() != nil {
			return false, lastErr
		}
	}
	return false, lastErr
}

func (c *HTTPChecker) probe(ctx context.Context, method, rawURL string) (int, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%s timed out after %s", method, timeout)
		}
		return 0, fmt.Errorf("%s: %w", method, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *HTTPChecker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
