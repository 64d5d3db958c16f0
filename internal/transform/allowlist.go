package transform

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// AllowedTags are the only elements an article body may contain. Other
// tags are dropped and their content kept.
var AllowedTags = []string{
	"h1", "h2", "cite", "figure", "figcaption", "iframe", "img", "video", "audio", "source",
	"a", "blockquote", "p", "ul", "ol", "li", "aside", "em", "strong", "sub", "sup",
	"strike", "s", "table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
	"br", "hr", "b", "i", "small", "del", "ins", "time", "address",
}

var allowList = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowDataURIImages()

	p.AllowAttrs("class", "data-feedback").OnElements("figure")
	p.AllowAttrs("src").OnElements("img", "video", "audio", "source", "iframe")
	p.AllowAttrs("type").OnElements("source")
	p.AllowAttrs("width", "height", "frameborder", "allowfullscreen").OnElements("iframe")
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("class", "title").OnElements("ul")
	p.AllowAttrs("datetime").OnElements("time")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	return p
})

// StripDisallowed removes every tag outside AllowedTags.
func StripDisallowed(content string) string {
	return allowList().Sanitize(content)
}
