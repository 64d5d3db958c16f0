package rules

import (
	"context"
	"fmt"
	"log/slog"
)

// PageSize bounds how many rules are fetched per query.
const PageSize = 250

// Source returns active rules in insertion order, one bounded page at a time.
type Source interface {
	ActiveRules(ctx context.Context, offset, limit int) ([]Rule, error)
}

// Static is an in-memory Source.
type Static []Rule

// ActiveRules implements Source.
func (s Static) ActiveRules(_ context.Context, offset, limit int) ([]Rule, error) {
	var active []Rule
	for _, r := range s {
		if r.Active() {
			active = append(active, r)
		}
	}
	if offset >= len(active) {
		return nil, nil
	}
	end := min(offset+limit, len(active))
	return active[offset:end], nil
}

// Set is the read-only rule configuration for one transformation run.
type Set struct {
	rules []Rule
}

// Load fetches every active rule from src, page by page.
func Load(ctx context.Context, src Source, logger *slog.Logger) (*Set, error) {
	var all []Rule
	for offset := 0; ; offset += PageSize {
		page, err := src.ActiveRules(ctx, offset, PageSize)
		if err != nil {
			return nil, fmt.Errorf("load rules at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < PageSize {
			break
		}
	}
	return NewSet(all, logger), nil
}

// NewSet keeps the active, valid rules in their given order. Invalid rules
// are skipped and logged.
func NewSet(rules []Rule, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Set{}
	for _, r := range rules {
		if !r.Active() {
			continue
		}
		if err := r.Validate(); err != nil {
			logger.Warn("skipping invalid transformer rule", "rule", r.ID, "type", r.Type, "error", err)
			continue
		}
		s.rules = append(s.rules, r)
	}
	return s
}

// All returns every rule in the set.
func (s *Set) All() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.rules...)
}

// Len returns the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// ByType returns the rules of one type in insertion order.
func (s *Set) ByType(t Type) []Rule {
	if s == nil {
		return nil
	}
	var out []Rule
	for _, r := range s.rules {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// PostContentPatterns returns the whole-document pattern rules.
func (s *Set) PostContentPatterns() []Rule {
	var out []Rule
	for _, r := range s.ByType(TypePostContent) {
		if r.Rule == ActionPatternMatcher {
			out = append(out, r)
		}
	}
	return out
}

// RemovedFilters returns the content filter names to unhook.
func (s *Set) RemovedFilters() []string {
	var out []string
	for _, r := range s.ByType(TypeContentFilter) {
		if r.Rule == ActionRemove {
			out = append(out, r.Selector)
		}
	}
	return out
}

// Shortcode returns the override rule for tag. The last registered rule
// for a tag wins.
func (s *Set) Shortcode(tag string) (Rule, bool) {
	var found Rule
	ok := false
	for _, r := range s.ByType(TypeShortcode) {
		if r.Selector == tag {
			found, ok = r, true
		}
	}
	return found, ok
}

// ShortcodeTags returns the tags with an override rule.
func (s *Set) ShortcodeTags() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range s.ByType(TypeShortcode) {
		if !seen[r.Selector] {
			seen[r.Selector] = true
			out = append(out, r.Selector)
		}
	}
	return out
}

// Custom returns the custom element rules.
func (s *Set) Custom() []Rule {
	return s.ByType(TypeCustom)
}
