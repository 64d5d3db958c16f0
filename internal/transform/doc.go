// Package transform converts rendered post content into an Instant Article
// body.
//
// A transformation runs as a fixed sequence:
//  1. Whole-document pattern rules over the raw content
//  2. pre_content filters
//  3. Rendering, with third-party output isolated behind placeholder tokens
//  4. after_content filters (heading downgrade)
//  5. Parse into a document
//  6. content_transform filters: custom rules, then the nine structural
//     stages (dedupe, cover, reachability, figures, hoist, interactive,
//     attributes, orphan text, prune)
//  7. Serialise, then after_transform filters (allow-list strip)
//  8. Restore scoped overrides, then placeholder tokens
package transform

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/wpnative/instant-articles/internal/dom"
	"github.com/wpnative/instant-articles/internal/hooks"
	"github.com/wpnative/instant-articles/internal/imagecheck"
	"github.com/wpnative/instant-articles/internal/media"
	"github.com/wpnative/instant-articles/internal/placeholder"
	"github.com/wpnative/instant-articles/internal/render"
	"github.com/wpnative/instant-articles/internal/rules"
)

// Extension point and stage names.
const (
	HookPreContent       = "pre_content"
	HookAfterContent     = "after_content"
	HookContentTransform = "content_transform"
	HookAfterTransform   = "after_transform"
	HookExemptShortcodes = "exempt_shortcodes"

	StageDowngradeHeadings = "downgrade_headings"
	StageCustomRules       = "custom_transformer_rules"
	StageDedupeImages      = "dedupe_images"
	StageStripCover        = "strip_cover_image"
	StageVerifyImages      = "verify_images"
	StageWrapImages        = "wrap_images"
	StageHoist             = "hoist_elements"
	StageWrapInteractive   = "wrap_interactive"
	StageStripAttributes   = "strip_attributes"
	StageWrapOrphanText    = "wrap_orphan_text"
	StagePruneEmpty        = "prune_empty"
	StageAllowList         = "strip_disallowed_tags"
)

// Hooks are the extension points callers can register filters on. Filters
// added here run in every transformation, around the built-in stages.
type Hooks struct {
	PreContent       *hooks.Chain[string]
	AfterContent     *hooks.Chain[string]
	ContentTransform *hooks.Chain[*dom.Document]
	AfterTransform   *hooks.Chain[string]
	ExemptShortcodes *hooks.Chain[[]string]
}

// NewHooks returns empty extension points.
func NewHooks() *Hooks {
	return &Hooks{
		PreContent:       hooks.New[string](HookPreContent),
		AfterContent:     hooks.New[string](HookAfterContent),
		ContentTransform: hooks.New[*dom.Document](HookContentTransform),
		AfterTransform:   hooks.New[string](HookAfterTransform),
		ExemptShortcodes: hooks.New[[]string](HookExemptShortcodes),
	}
}

func (h *Hooks) fork() *Hooks {
	return &Hooks{
		PreContent:       h.PreContent.Clone(),
		AfterContent:     h.AfterContent.Clone(),
		ContentTransform: h.ContentTransform.Clone(),
		AfterTransform:   h.AfterTransform.Clone(),
		ExemptShortcodes: h.ExemptShortcodes.Clone(),
	}
}

// ContentParser turns posts into Instant Article bodies. It is safe for
// concurrent use: every call works on its own fork of the renderer and
// extension points.
type ContentParser struct {
	Renderer *render.Renderer
	Rules    rules.Source
	Media    media.Library
	Images   imagecheck.Checker
	Elements ElementTransformer
	Hooks    *Hooks
	Settings Settings
	Logger   *slog.Logger
}

// NewContentParser wires a parser with default extension points and element
// builder. Nil collaborators disable the features that need them.
func NewContentParser(renderer *render.Renderer, src rules.Source, lib media.Library, images imagecheck.Checker, settings Settings, logger *slog.Logger) *ContentParser {
	if renderer == nil {
		renderer = render.New(nil, nil, logger)
	}
	if settings.ExemptShortcodes == nil {
		settings.ExemptShortcodes = slices.Clone(DefaultExemptShortcodes)
	}
	return &ContentParser{
		Renderer: renderer,
		Rules:    src,
		Media:    lib,
		Images:   images,
		Elements: ElementBuilder{},
		Hooks:    NewHooks(),
		Settings: settings,
		Logger:   logger,
	}
}

// run is the state of a single transformation.
type run struct {
	ctx      context.Context
	parser   *ContentParser
	post     Post
	rules    *rules.Set
	tokens   *placeholder.Table
	renderer *render.Renderer
	hooks    *Hooks
	logger   *slog.Logger
}

// Transform converts one post. Content defects never fail the call; only
// context cancellation is returned as an error.
func (p *ContentParser) Transform(ctx context.Context, post Post) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("post", post.ID)

	set := rules.NewSet(nil, logger)
	if p.Rules != nil {
		loaded, err := rules.Load(ctx, p.Rules, logger)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Warn("loading transformer rules failed; continuing without rules", "error", err)
		} else {
			set = loaded
		}
	}

	base := p.Hooks
	if base == nil {
		base = NewHooks()
	}
	r := &run{
		ctx:      ctx,
		parser:   p,
		post:     post,
		rules:    set,
		tokens:   placeholder.New(),
		renderer: p.Renderer.Fork(),
		hooks:    base.fork(),
		logger:   logger,
	}
	r.registerStages()
	return r.execute()
}

func (r *run) registerStages() {
	r.hooks.AfterContent.Add(StageDowngradeHeadings, hooks.DefaultPriority, downgradeHeadings)

	ct := r.hooks.ContentTransform
	ct.Add(StageCustomRules, 5, r.applyCustomRules)
	ct.Add(StageDedupeImages, 10, r.dedupeImages)
	ct.Add(StageStripCover, 20, r.stripCoverImage)
	ct.Add(StageVerifyImages, 30, r.verifyImages)
	ct.Add(StageWrapImages, 40, r.wrapImages)
	ct.Add(StageHoist, 50, hoistElements)
	ct.Add(StageWrapInteractive, 60, wrapInteractive)
	ct.Add(StageStripAttributes, 70, stripAttributes)
	ct.Add(StageWrapOrphanText, 80, wrapOrphanText)
	ct.Add(StagePruneEmpty, 90, pruneEmpty)

	r.hooks.AfterTransform.Add(StageAllowList, hooks.DefaultPriority, StripDisallowed)
}

func (r *run) execute() (string, error) {
	content := r.post.Content

	// Pattern rules see the raw content, before rendering and parsing.
	content = rules.BuildBatch(r.rules.PostContentPatterns(), r.logger).Apply(content, r.logger)

	restore := r.installOverrides()
	defer restore()

	content = r.hooks.PreContent.Apply(content)
	content = r.renderer.Render(content, r.post.Format)
	content = r.hooks.AfterContent.Apply(content)

	doc := dom.Parse(content, r.parser.Settings.Charset)
	for _, w := range doc.Warnings {
		r.logger.Debug("tolerated parse problem", "warning", w)
	}
	doc = r.hooks.ContentTransform.Apply(doc)
	if err := r.ctx.Err(); err != nil {
		return "", err
	}

	out := r.hooks.AfterTransform.Apply(doc.Serialize())
	out = strings.TrimSpace(doc.EscapeUnsupported(out))

	restore()
	out = r.tokens.RestoreAll(out)
	if left := r.tokens.Leftovers(out); len(left) > 0 {
		r.logger.Error("placeholder tokens left in output", "tokens", left)
	}
	return out, nil
}

// installOverrides applies content filter removals, shortcode rules and
// fragment isolation for this run. The returned restore undoes all of them
// in reverse order and may be called more than once.
func (r *run) installOverrides() (restore func()) {
	var restores []func()

	var unhook []string
	for _, name := range r.rules.RemovedFilters() {
		if render.Protected(name) {
			r.logger.Warn("content filter can not be removed", "filter", name)
			continue
		}
		unhook = append(unhook, name)
	}
	restores = append(restores, r.renderer.Chain().Suspend(unhook...))

	exempt := r.hooks.ExemptShortcodes.Apply(slices.Clone(r.parser.Settings.ExemptShortcodes))
	restores = append(restores, r.renderer.Shortcodes().Override(r.shortcodeOverrides(exempt)))
	restores = append(restores, r.renderer.Embeds().Intercept(func(name, out string) string {
		if slices.Contains(exempt, name) {
			return out
		}
		return r.isolate(out)
	}))

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(restores) - 1; i >= 0; i-- {
				restores[i]()
			}
		})
	}
}
