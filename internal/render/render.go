// Package render is the post content rendering chain: markdown conversion,
// autoembed, texturize, paragraph wrapping and shortcode expansion, each a
// named stage on a filter chain so operators can unhook the optional ones.
package render

import (
	"bytes"
	"log/slog"
	"slices"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/wpnative/instant-articles/internal/embed"
	"github.com/wpnative/instant-articles/internal/hooks"
	"github.com/wpnative/instant-articles/internal/shortcode"
)

// Stage names on the content chain.
const (
	StageAutoembed        = "autoembed"
	StageTexturize        = "wptexturize"
	StageAutop            = "wpautop"
	StageShortcodeUnautop = "shortcode_unautop"
	StageDoShortcode      = "do_shortcode"
)

// FormatMarkdown marks posts whose content is markdown source.
const FormatMarkdown = "markdown"

// protected stages are relied upon by the instant article pipeline and may
// never be unhooked by a content filter rule.
var protected = []string{StageTexturize, StageAutop, StageDoShortcode}

// Renderer renders post content to HTML.
type Renderer struct {
	content    *hooks.Chain[string]
	shortcodes *shortcode.Registry
	embeds     *embed.Registry
	markdown   goldmark.Markdown
	logger     *slog.Logger
}

// New builds a renderer with the default content stages.
func New(shortcodes *shortcode.Registry, embeds *embed.Registry, logger *slog.Logger) *Renderer {
	if shortcodes == nil {
		shortcodes = shortcode.NewRegistry()
	}
	if embeds == nil {
		embeds = embed.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{
		content:    hooks.New[string]("the_content"),
		shortcodes: shortcodes,
		embeds:     embeds,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(), // post HTML is stripped to the allow-list later
				gmhtml.WithXHTML(),
			),
		),
		logger: logger,
	}
	r.content.Add(StageAutoembed, 8, r.embeds.Autoembed)
	r.content.Add(StageTexturize, hooks.DefaultPriority, Texturize)
	r.content.Add(StageAutop, hooks.DefaultPriority, Autop)
	r.content.Add(StageShortcodeUnautop, hooks.DefaultPriority, r.unautop)
	r.content.Add(StageDoShortcode, 11, r.shortcodes.Do)
	return r
}

// Fork returns a renderer with its own chain and registries so that scoped
// overrides made during one transformation never leak into another.
func (r *Renderer) Fork() *Renderer {
	f := &Renderer{
		content:    r.content.Clone(),
		shortcodes: r.shortcodes.Clone(),
		embeds:     r.embeds.Clone(),
		markdown:   r.markdown,
		logger:     r.logger,
	}
	f.content.Replace(StageAutoembed, f.embeds.Autoembed)
	f.content.Replace(StageShortcodeUnautop, f.unautop)
	f.content.Replace(StageDoShortcode, f.shortcodes.Do)
	return f
}

// Chain exposes the content chain.
func (r *Renderer) Chain() *hooks.Chain[string] { return r.content }

// Shortcodes exposes the shortcode registry.
func (r *Renderer) Shortcodes() *shortcode.Registry { return r.shortcodes }

// Embeds exposes the embed registry.
func (r *Renderer) Embeds() *embed.Registry { return r.embeds }

// Protected reports whether the named stage may never be unhooked.
func Protected(name string) bool {
	return slices.Contains(protected, name)
}

// Render runs content through the chain. Markdown content is converted to
// HTML first; a conversion failure falls back to the raw source.
func (r *Renderer) Render(content, format string) string {
	if format == FormatMarkdown {
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(content), &buf); err != nil {
			r.logger.Warn("markdown conversion failed", "error", err)
		} else {
			content = buf.String()
		}
	}
	return r.content.Apply(content)
}

func (r *Renderer) unautop(content string) string {
	return unautop(content, r.shortcodes.Tags())
}
