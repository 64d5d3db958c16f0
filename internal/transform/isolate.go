package transform

import (
	"slices"
	"strings"

	"github.com/wpnative/instant-articles/internal/rules"
	"github.com/wpnative/instant-articles/internal/shortcode"
)

// isolate reserves third-party output behind a token inside an interactive
// figure stub. The structural stages only ever see the stub; the markup
// comes back when tokens are restored.
func (r *run) isolate(out string) string {
	payload := strings.TrimSpace(out)
	if payload == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(payload), "<iframe") {
		payload = "<iframe>" + payload + "</iframe>"
	}
	return `<figure class="op-interactive">` + r.tokens.Reserve(payload) + `</figure>`
}

// shortcodeOverrides builds the handler table installed on the forked
// shortcode registry for this run. Tags with a rule get the rule's
// behaviour; every other registered tag that is not exempt is isolated.
func (r *run) shortcodeOverrides(exempt []string) map[string]shortcode.Handler {
	reg := r.renderer.Shortcodes()
	table := make(map[string]shortcode.Handler)

	for _, tag := range reg.Tags() {
		if slices.Contains(exempt, tag) {
			continue
		}
		orig, _ := reg.Handler(tag)
		table[tag] = func(attrs shortcode.Attrs, content, tag string) string {
			return r.isolate(orig(attrs, content, tag))
		}
	}

	for _, tag := range r.rules.ShortcodeTags() {
		rule, _ := r.rules.Shortcode(tag)
		orig, registered := reg.Handler(tag)
		switch rule.Rule {
		case rules.ActionRemove:
			table[tag] = func(shortcode.Attrs, string, string) string { return "" }
		case rules.ActionBypassParser:
			if !registered {
				r.logger.Debug("shortcode rule for unregistered tag skipped", "tag", tag, "rule", rule.ID)
				continue
			}
			table[tag] = func(attrs shortcode.Attrs, content, tag string) string {
				return r.tokens.Reserve(orig(attrs, content, tag))
			}
		case rules.ActionPatternMatcher:
			if !registered {
				r.logger.Debug("shortcode rule for unregistered tag skipped", "tag", tag, "rule", rule.ID)
				continue
			}
			pattern, err := rules.PatternFor(rule)
			if err != nil {
				r.logger.Warn("shortcode pattern does not compile", "tag", tag, "rule", rule.ID, "error", err)
				continue
			}
			table[tag] = func(attrs shortcode.Attrs, content, tag string) string {
				return r.tokens.Reserve(pattern.Apply(orig(attrs, content, tag)))
			}
		default:
			r.logger.Debug("unknown shortcode rule skipped", "tag", tag, "rule", rule.ID, "action", rule.Rule)
		}
	}
	return table
}
