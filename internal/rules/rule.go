// Package rules holds the transformer rules site operators configure to
// extend the content pipeline: whole-document pattern substitutions,
// content filter removals, shortcode overrides and selector-driven custom
// element rules. Rules are validated when they are registered, so the
// pipeline only ever sees well-formed configuration.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/wpnative/instant-articles/internal/dom"
	"github.com/wpnative/instant-articles/internal/render"
)

// Type says where in the pipeline a rule applies.
type Type string

const (
	TypePostContent   Type = "post_content"
	TypeContentFilter Type = "content_filter"
	TypeShortcode     Type = "shortcode"
	TypeCustom        Type = "custom"
)

// Status controls whether a rule is applied.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Rule actions. Custom rules may also name an element Kind.
const (
	ActionRemove         = "remove"
	ActionBypassParser   = "bypass_parser"
	ActionPatternMatcher = "pattern_matcher"
)

// Metadata keys.
const (
	MetaSearchFor   = "search_for"
	MetaReplaceWith = "replace_with"
	MetaProperties  = "properties"
)

var (
	// ErrInvalidRule is wrapped by every validation failure.
	ErrInvalidRule = errors.New("invalid transformer rule")
	// ErrUnknownKind reports a custom rule naming an element kind that does
	// not exist.
	ErrUnknownKind = errors.New("unknown element kind")
)

// ValidationError describes why a rule was rejected.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidRule, e.Err}
	}
	return []error{ErrInvalidRule}
}

// Rule is one operator-configured transformer rule.
type Rule struct {
	ID       int64             `json:"id"`
	Type     Type              `json:"type"`
	Rule     string            `json:"rule"`
	Selector string            `json:"selector"`
	Status   Status            `json:"status"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Active reports whether the rule should be applied.
func (r Rule) Active() bool { return r.Status == StatusActive }

// MetaValue returns a metadata value or "".
func (r Rule) MetaValue(key string) string {
	if r.Meta == nil {
		return ""
	}
	return r.Meta[key]
}

// Normalize trims whitespace and fills in defaults.
func (r *Rule) Normalize() {
	r.Type = Type(strings.TrimSpace(string(r.Type)))
	r.Rule = strings.TrimSpace(r.Rule)
	r.Selector = strings.TrimSpace(r.Selector)
	r.Status = Status(strings.TrimSpace(string(r.Status)))
	if r.Status == "" {
		r.Status = StatusActive
	}
}

// Validate checks the rule against its type's requirements.
func (r Rule) Validate() error {
	switch r.Status {
	case StatusActive, StatusInactive:
	default:
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", r.Status)}
	}

	switch r.Type {
	case TypePostContent:
		if r.Rule != ActionPatternMatcher {
			return &ValidationError{Field: "rule", Reason: "post_content rules must be pattern_matcher"}
		}
		return validatePattern(r)

	case TypeContentFilter:
		if r.Rule != ActionRemove {
			return &ValidationError{Field: "rule", Reason: "content_filter rules must be remove"}
		}
		if r.Selector == "" {
			return &ValidationError{Field: "selector", Reason: "content filter name is required"}
		}
		if render.Protected(r.Selector) {
			return &ValidationError{Field: "selector", Reason: fmt.Sprintf("%s can not be removed", r.Selector)}
		}
		return nil

	case TypeShortcode:
		if r.Selector == "" {
			return &ValidationError{Field: "selector", Reason: "shortcode tag is required"}
		}
		switch r.Rule {
		case ActionRemove, ActionBypassParser:
			return nil
		case ActionPatternMatcher:
			return validatePattern(r)
		}
		return &ValidationError{Field: "rule", Reason: fmt.Sprintf("unknown shortcode action %q", r.Rule)}

	case TypeCustom:
		if err := validateSelector(r.Selector); err != nil {
			return err
		}
		if r.Rule == ActionRemove {
			return nil
		}
		if _, err := ParseKind(r.Rule); err != nil {
			return &ValidationError{Field: "rule", Reason: err.Error(), Err: ErrUnknownKind}
		}
		if _, err := r.Properties(); err != nil {
			return &ValidationError{Field: "meta." + MetaProperties, Reason: err.Error()}
		}
		return nil
	}
	return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown rule type %q", r.Type)}
}

func validatePattern(r Rule) error {
	search := r.MetaValue(MetaSearchFor)
	if search == "" {
		return &ValidationError{Field: "meta." + MetaSearchFor, Reason: "search pattern is required"}
	}
	if n := strings.Count(search, Wildcard); n > 1 {
		return &ValidationError{Field: "meta." + MetaSearchFor, Reason: fmt.Sprintf("at most one %s wildcard is supported, found %d", Wildcard, n)}
	}
	if n := strings.Count(r.MetaValue(MetaReplaceWith), Wildcard); n > 0 && !strings.Contains(search, Wildcard) {
		return &ValidationError{Field: "meta." + MetaReplaceWith, Reason: "replacement uses a wildcard the search pattern does not capture"}
	}
	return nil
}

func validateSelector(selector string) error {
	if selector == "" {
		return &ValidationError{Field: "selector", Reason: "selector is required"}
	}
	if dom.IsPathExpression(selector) {
		if _, err := dom.CompilePath(selector); err != nil {
			return &ValidationError{Field: "selector", Reason: err.Error()}
		}
		return nil
	}
	if _, err := cascadia.Compile(selector); err != nil {
		return &ValidationError{Field: "selector", Reason: err.Error()}
	}
	return nil
}

// Properties holds the optional element-building hints of a custom rule.
type Properties struct {
	// Source names the attribute carrying the media or embed URL.
	Source string `json:"source,omitempty"`
	// Caption is a selector, relative to the match, for caption text.
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Properties decodes the properties metadata. An absent blob yields zero
// properties.
func (r Rule) Properties() (Properties, error) {
	var p Properties
	raw := strings.TrimSpace(r.MetaValue(MetaProperties))
	if raw == "" {
		return p, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode properties: %w", err)
	}
	if p.Caption != "" {
		if _, err := cascadia.Compile(p.Caption); err != nil {
			return p, fmt.Errorf("caption selector: %w", err)
		}
	}
	return p, nil
}
