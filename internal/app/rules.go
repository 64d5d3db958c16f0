package app

import (
	"context"
	"log/slog"

	"github.com/wpnative/instant-articles/internal/cache"
	"github.com/wpnative/instant-articles/internal/rules"
	"github.com/wpnative/instant-articles/internal/store"
)

// RuleAdmin changes the stored rules and purges cached articles afterwards,
// since any rule change can alter every article.
type RuleAdmin struct {
	DB     *store.DB
	Cache  *cache.Articles
	Logger *slog.Logger
}

func (r *RuleAdmin) Rules(ctx context.Context) ([]rules.Rule, error) {
	return r.DB.Rules(ctx)
}

func (r *RuleAdmin) AddRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	added, err := r.DB.AddRule(ctx, rule)
	if err != nil {
		return added, err
	}
	r.purge(ctx)
	return added, nil
}

func (r *RuleAdmin) DeleteRule(ctx context.Context, id int64) error {
	if err := r.DB.DeleteRule(ctx, id); err != nil {
		return err
	}
	r.purge(ctx)
	return nil
}

func (r *RuleAdmin) ReplaceRules(ctx context.Context, set []rules.Rule) error {
	if err := r.DB.ReplaceRules(ctx, set); err != nil {
		return err
	}
	r.purge(ctx)
	return nil
}

func (r *RuleAdmin) purge(ctx context.Context) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Purge(ctx); err != nil {
		r.Logger.Warn("purge article cache after rule change", "error", err)
	}
}
