// Package app assembles the service from its configuration: storage, the
// article cache, the content parser and the surfaces built on them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wpnative/instant-articles/internal/article"
	"github.com/wpnative/instant-articles/internal/cache"
	"github.com/wpnative/instant-articles/internal/config"
	"github.com/wpnative/instant-articles/internal/embed"
	"github.com/wpnative/instant-articles/internal/feed"
	"github.com/wpnative/instant-articles/internal/imagecheck"
	"github.com/wpnative/instant-articles/internal/pipeline"
	"github.com/wpnative/instant-articles/internal/render"
	"github.com/wpnative/instant-articles/internal/rules"
	"github.com/wpnative/instant-articles/internal/shortcode"
	"github.com/wpnative/instant-articles/internal/store"
	"github.com/wpnative/instant-articles/internal/transform"
	"github.com/wpnative/instant-articles/internal/web"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *store.DB
	Cache    *cache.Articles
	Parser   *transform.ContentParser
	Articles *article.Service
	Rules    *RuleAdmin
	Feed     *feed.Generator
}

// New opens the database and wires every component. Close releases it.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var backend cache.Store
	switch cfg.Cache.Backend {
	case config.BackendFS:
		backend = cache.NewFSStore(cfg.Cache.Dir)
	case config.BackendMemory:
		backend = cache.NewMemoryStore()
	default:
		backend = db.Transients()
	}
	articles := cache.NewArticles(backend, cfg.Cache.TTL, cfg.Version, logger)

	parser := transform.NewContentParser(NewRenderer(logger), db, db, newChecker(cfg, logger), Settings(cfg), logger)

	svc := &article.Service{
		Posts:  db,
		Media:  db,
		Parser: parser,
		Cache:  articles,
		Logger: logger,
	}
	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Cache:    articles,
		Parser:   parser,
		Articles: svc,
		Rules:    &RuleAdmin{DB: db, Cache: articles, Logger: logger},
		Feed:     &feed.Generator{SiteURL: cfg.SiteBase(), Posts: db, Articles: svc, Logger: logger},
	}, nil
}

// NewRenderer builds the content renderer with the built-in shortcodes and
// the default embed providers.
func NewRenderer(logger *slog.Logger) *render.Renderer {
	shortcodes := shortcode.NewRegistry()
	shortcode.RegisterBuiltins(shortcodes)
	return render.New(shortcodes, embed.Default(), logger)
}

// Settings maps configuration onto transform settings.
func Settings(cfg *config.Config) transform.Settings {
	return transform.Settings{
		SiteURL:          cfg.SiteBase(),
		Charset:          cfg.Charset,
		CheckImages:      cfg.Images.CheckReachability,
		Likes:            cfg.Images.Likes,
		Comments:         cfg.Images.Comments,
		ExemptShortcodes: cfg.Shortcodes.Exempt,
	}
}

func newChecker(cfg *config.Config, logger *slog.Logger) imagecheck.Checker {
	if !cfg.Images.CheckReachability {
		return nil
	}
	c := imagecheck.New(cfg.Images.Timeout, cfg.Images.Concurrency, cfg.Images.RequestsPerSecond, cfg.Images.Burst)
	c.Logger = logger
	return c
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Server returns the HTTP API.
func (a *App) Server() *web.Server {
	return web.NewServer(a.Articles, a.Rules, a.Feed, a.Logger)
}

// Warmer returns a runner that fills the article cache.
func (a *App) Warmer(concurrency int, force bool) *pipeline.Runner {
	return &pipeline.Runner{
		Articles:    a.Articles,
		Concurrency: concurrency,
		Force:       force,
		Logger:      a.Logger,
	}
}

// Watcher returns a watcher that re-imports the configured rules file on
// change, or nil when no rules file is configured.
func (a *App) Watcher() *rules.Watcher {
	if a.Config.RulesFile == "" {
		return nil
	}
	return &rules.Watcher{
		Path:     a.Config.RulesFile,
		OnChange: a.Rules.ReplaceRules,
		Logger:   a.Logger,
	}
}

// RunJanitor deletes expired cache rows from the database every interval
// until ctx is cancelled. It is a no-op for other cache backends.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	if a.Config.Cache.Backend != config.BackendSQLite {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.DB.Transients().PurgeExpired(ctx)
			if err != nil {
				a.Logger.Warn("purge expired cache entries", "error", err)
				continue
			}
			if n > 0 {
				a.Logger.Debug("purged expired cache entries", "count", n)
			}
		}
	}
}

// ImportRules replaces the stored rules with the contents of a deb822 rules
// file. Invalid stanzas are skipped with a warning as long as at least one
// rule is readable.
func (a *App) ImportRules(ctx context.Context, path string) (int, error) {
	loaded, err := rules.ReadFile(path)
	if err != nil && len(loaded) == 0 {
		return 0, fmt.Errorf("read rules %s: %w", path, err)
	}
	if err != nil {
		a.Logger.Warn("rules file has invalid stanzas", "path", path, "error", err)
	}
	if err := a.Rules.ReplaceRules(ctx, loaded); err != nil {
		return 0, err
	}
	return len(loaded), nil
}
