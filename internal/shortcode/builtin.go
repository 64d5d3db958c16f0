package shortcode

import (
	"html"
	"regexp"
	"strings"
)

var captionImage = regexp.MustCompile(`(?is)^\s*((?:<a [^>]+>\s*)?<img [^>]+>(?:\s*</a>)?)(.*)$`)

// Caption renders [caption]<img ...> text[/caption] as the legacy caption
// wrapper: a div.wp-caption holding the image and a p.wp-caption-text.
// The caption attribute takes precedence over trailing text.
func Caption(attrs Attrs, content, _ string) string {
	m := captionImage.FindStringSubmatch(content)
	if m == nil {
		return content
	}
	image, text := m[1], strings.TrimSpace(m[2])
	if c := attrs["caption"]; c != "" {
		text = html.EscapeString(c)
	}

	class := "wp-caption"
	if align := attrs["align"]; align != "" {
		class += " " + html.EscapeString(align)
	}
	var b strings.Builder
	b.WriteString(`<div`)
	if id := attrs["id"]; id != "" {
		b.WriteString(` id="` + html.EscapeString(id) + `"`)
	}
	b.WriteString(` class="` + class + `">`)
	b.WriteString(image)
	if text != "" {
		b.WriteString(`<p class="wp-caption-text">` + text + `</p>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// RegisterBuiltins adds the shortcodes every site has.
func RegisterBuiltins(r *Registry) {
	r.Add("caption", Caption)
	r.Add("wp_caption", Caption)
}
