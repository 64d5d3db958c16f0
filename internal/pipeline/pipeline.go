// Package pipeline warms the article cache for many posts at once, tracking
// the progress of every post so operators can follow a long run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wpnative/instant-articles/internal/article"
)

const DefaultConcurrency = 4

// Articles is the article service the runner drives.
type Articles interface {
	Get(ctx context.Context, id int64) (article.Result, error)
	Invalidate(ctx context.Context, id int64) error
}

type Runner struct {
	Articles    Articles
	Concurrency int
	// FailuresPath, when set, receives one line per failed post as soon as
	// the failure happens.
	FailuresPath string
	// Force drops existing cache entries before transforming.
	Force  bool
	Logger *slog.Logger

	mu       sync.Mutex
	statuses []PostStatus
	failures []string
}

// Run transforms every post, recording per-post failures without stopping.
// It returns an error only when the runner is misconfigured or ctx ends.
func (r *Runner) Run(ctx context.Context, ids []int64) error {
	if r.Articles == nil {
		return errors.New("pipeline runner missing article service")
	}
	workers := r.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}

	r.mu.Lock()
	r.statuses = make([]PostStatus, len(ids))
	r.failures = nil
	for i, id := range ids {
		r.statuses[i] = PostStatus{PostID: id, Stage: StageWaiting}
	}
	r.mu.Unlock()

	if r.FailuresPath != "" {
		_ = os.MkdirAll(filepath.Dir(r.FailuresPath), 0o755)
		_ = os.WriteFile(r.FailuresPath, nil, 0o644)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(workers, max(len(ids), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				r.warm(ctx, idx)
			}
		}()
	}

feed:
	for idx := range ids {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	sum := r.Summary()
	r.logger().Info("warm-up finished", "total", sum.Total, "transformed", sum.Transformed, "cached", sum.Cached, "errors", sum.Errors)
	if sum.Errors > 0 {
		r.logger().Warn("warm-up completed with failures", "count", sum.Errors)
	}
	return ctx.Err()
}

func (r *Runner) warm(ctx context.Context, idx int) {
	r.mu.Lock()
	id := r.statuses[idx].PostID
	r.statuses[idx].Stage = StageTransforming
	r.mu.Unlock()

	start := time.Now()
	var (
		res article.Result
		err error
	)
	if r.Force {
		err = r.Articles.Invalidate(ctx, id)
	}
	if err == nil {
		res, err = r.Articles.Get(ctx, id)
	}

	r.mu.Lock()
	r.statuses[idx].Duration = time.Since(start)
	if err != nil {
		r.statuses[idx].Stage = StageError
		r.statuses[idx].Error = err.Error()
	} else {
		r.statuses[idx].Stage = StageDone
		r.statuses[idx].Cached = res.Cached
	}
	r.mu.Unlock()

	if err != nil {
		r.recordFailure(id, err)
		return
	}
	r.logger().Debug("post warmed", "post", id, "cached", res.Cached)
}

// Statuses returns a snapshot of every post's progress.
func (r *Runner) Statuses() []PostStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PostStatus, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// Failures returns the failure messages recorded so far.
func (r *Runner) Failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

// Summary totals the current statuses.
func (r *Runner) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Summary{Total: len(r.statuses)}
	for _, st := range r.statuses {
		switch st.Stage {
		case StageError:
			s.Errors++
		case StageDone:
			if st.Cached {
				s.Cached++
			} else {
				s.Transformed++
			}
		}
	}
	return s
}

func (r *Runner) recordFailure(id int64, err error) {
	message := strings.TrimSpace(fmt.Sprintf("post %d: %v", id, err))
	r.mu.Lock()
	r.failures = append(r.failures, message)
	r.mu.Unlock()

	// Append to the failure log immediately so users can tail it.
	if r.FailuresPath != "" {
		f, ferr := os.OpenFile(r.FailuresPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr == nil {
			_, _ = fmt.Fprintln(f, message)
			_ = f.Close()
		}
	}

	r.logger().Warn("warm-up failure", "post", id, "error", err)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
