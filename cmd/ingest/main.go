package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/wpnative/instant-articles/internal/app"
	"github.com/wpnative/instant-articles/internal/config"
	"github.com/wpnative/instant-articles/internal/logging"
	"github.com/wpnative/instant-articles/internal/media"
	"github.com/wpnative/instant-articles/internal/store"
)

// export is the import file format: posts and the attachments they
// reference, as exported from the CMS.
type export struct {
	Posts       []store.Post       `json:"posts"`
	Attachments []media.Attachment `json:"attachments"`
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config YAML")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	postsFile := flag.String("posts", "", "JSON export of posts and attachments to import")
	rulesFile := flag.String("rules", "", "deb822 rules file replacing the stored rules")
	warm := flag.Bool("warm", false, "Transform every post into the cache after importing")
	only := flag.String("post", "", "Comma-separated post IDs to warm (default all)")
	force := flag.Bool("force", false, "Re-transform posts that are already cached")
	concurrency := flag.Int("concurrency", 4, "Posts transformed in parallel")
	failures := flag.String("failures", "", "File receiving one line per failed post")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel, logging.FormatText)

	opts := options{
		postsFile:   *postsFile,
		rulesFile:   *rulesFile,
		warm:        *warm,
		only:        *only,
		force:       *force,
		concurrency: *concurrency,
		failures:    *failures,
	}
	if err := ingest(context.Background(), logger, *configPath, opts); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	postsFile   string
	rulesFile   string
	warm        bool
	only        string
	force       bool
	concurrency int
	failures    string
}

func ingest(ctx context.Context, logger *slog.Logger, configPath string, opts options) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if opts.rulesFile != "" {
		n, err := a.ImportRules(ctx, opts.rulesFile)
		if err != nil {
			return err
		}
		logger.Info("imported rules", "count", n)
	}

	if opts.postsFile != "" {
		f, err := os.Open(opts.postsFile)
		if err != nil {
			return fmt.Errorf("open posts: %w", err)
		}
		n, err := importPosts(ctx, a, f)
		_ = f.Close()
		if err != nil {
			return err
		}
		logger.Info("imported posts", "count", n)
	}

	if !opts.warm {
		return nil
	}
	ids, err := resolvePosts(ctx, a, opts.only)
	if err != nil {
		return fmt.Errorf("invalid post list: %w", err)
	}
	runner := a.Warmer(opts.concurrency, opts.force)
	runner.FailuresPath = opts.failures
	return runner.Run(ctx, ids)
}

func importPosts(ctx context.Context, a *app.App, r io.Reader) (int, error) {
	var data export
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode posts: %w", err)
	}
	for _, att := range data.Attachments {
		if err := a.DB.SaveAttachment(ctx, att); err != nil {
			return 0, err
		}
	}
	for _, p := range data.Posts {
		if _, err := a.Articles.Save(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(data.Posts), nil
}

var errInvalidPost = errors.New("invalid post id")

func resolvePosts(ctx context.Context, a *app.App, list string) ([]int64, error) {
	if strings.TrimSpace(list) == "" {
		return a.DB.PostIDs(ctx)
	}
	var ids []int64
	for _, field := range strings.Split(list, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil || id <= 0 {
			return nil, errInvalidPost
		}
		ids = append(ids, id)
	}
	return ids, nil
}
