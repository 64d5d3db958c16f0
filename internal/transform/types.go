package transform

import (
	"github.com/wpnative/instant-articles/internal/media"
)

// Overrides holds per-post toggles. A nil toggle inherits the site setting.
type Overrides struct {
	Likes    *bool `json:"likes,omitempty"`
	Comments *bool `json:"comments,omitempty"`
}

// Post is the input of one transformation.
type Post struct {
	ID      int64
	Content string
	// Format is "html" (the default) or "markdown".
	Format    string
	Cover     *media.Attachment
	Overrides Overrides
}

// Settings are the site-wide options that shape output.
type Settings struct {
	// SiteURL resolves relative and protocol-relative image URLs.
	SiteURL string
	Charset string
	// CheckImages enables the reachability stage.
	CheckImages bool
	Likes       bool
	Comments    bool
	// ExemptShortcodes lists shortcode tags and embed providers whose output
	// is trusted and not isolated.
	ExemptShortcodes []string
}

// DefaultExemptShortcodes are handled by dedicated image stages.
var DefaultExemptShortcodes = []string{"gallery", "caption", "wp_caption"}

func toggle(override *bool, site bool) bool {
	if override != nil {
		return *override
	}
	return site
}
