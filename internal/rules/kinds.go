package rules

import (
	"fmt"
	"slices"
)

// Kind is a creatable Instant Article element. The set is closed: a custom
// rule naming anything else is rejected when it is registered.
type Kind string

const (
	KindParagraph       Kind = "paragraph"
	KindHeading         Kind = "heading"
	KindBlockquote      Kind = "blockquote"
	KindPullquote       Kind = "pullquote"
	KindImage           Kind = "image"
	KindVideo           Kind = "video"
	KindInteractive     Kind = "interactive"
	KindSocialEmbed     Kind = "social_embed"
	KindSlideshow       Kind = "slideshow"
	KindRelatedArticles Kind = "related_articles"
	KindAd              Kind = "ad"
)

var kinds = []Kind{
	KindParagraph,
	KindHeading,
	KindBlockquote,
	KindPullquote,
	KindImage,
	KindVideo,
	KindInteractive,
	KindSocialEmbed,
	KindSlideshow,
	KindRelatedArticles,
	KindAd,
}

// Kinds returns every element kind.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// ParseKind resolves an element kind by name.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if !slices.Contains(kinds, k) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Kind returns the element kind of a custom element rule.
func (r Rule) Kind() (Kind, bool) {
	if r.Type != TypeCustom {
		return "", false
	}
	k, err := ParseKind(r.Rule)
	return k, err == nil
}
