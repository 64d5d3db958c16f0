package transform

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/wpnative/instant-articles/internal/dom"
)

var (
	interactiveTags = []string{"iframe", "table", "object", "embed"}

	inlineTags = []string{
		"a", "abbr", "b", "br", "cite", "code", "em", "i", "s", "small", "span",
		"strike", "strong", "sub", "sup", "time", "u", "del", "ins", "mark", "q",
	}

	// Elements that are never empty, and keep their ancestors alive. Table
	// cells stay so that columns do not shift.
	contentTags = []string{"img", "figure", "iframe", "embed", "script", "video", "audio", "source", "br", "hr", "td", "th"}

	strippedAttrs = []string{"style", "class", "id"}
)

// Stage 6: embeds and tables outside a figure get an interactive figure.
func wrapInteractive(doc *dom.Document) *dom.Document {
	body := doc.Body()
	inFigure := func(n *html.Node) bool { return dom.IsElement(n, "figure") }
	for _, n := range dom.Elements(body) {
		if !dom.IsElement(n, interactiveTags...) || dom.HasAncestor(n, body, inFigure) {
			continue
		}
		dom.Wrap(n, dom.NewElement("figure", dom.A("class", "op-interactive")))
	}
	return doc
}

// Stage 7: presentation attributes go. Figures keep their class, and
// lists keep an op- class, since either carries the element kind.
func stripAttributes(doc *dom.Document) *dom.Document {
	for _, n := range dom.Elements(doc.Body()) {
		for _, key := range strippedAttrs {
			if key == "class" && keepsKindClass(n) {
				continue
			}
			dom.RemoveAttr(n, key)
		}
	}
	return doc
}

func keepsKindClass(n *html.Node) bool {
	switch dom.Tag(n) {
	case "figure":
		return true
	case "ul":
		return strings.HasPrefix(dom.AttrOr(n, "class", ""), "op-")
	}
	return false
}

// Stage 8: text and inline elements directly under the body are gathered
// into paragraphs.
func wrapOrphanText(doc *dom.Document) *dom.Document {
	body := doc.Body()
	var run []*html.Node
	flush := func() {
		if hasText(run) {
			p := dom.NewElement("p")
			dom.InsertBefore(body, p, run[0])
			for _, n := range run {
				dom.AppendChild(p, n)
			}
		}
		run = nil
	}
	for _, c := range dom.Children(body) {
		if c.Type == html.TextNode || c.Type == html.CommentNode || dom.IsElement(c, inlineTags...) {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	return doc
}

func hasText(nodes []*html.Node) bool {
	for _, n := range nodes {
		if n.Type == html.CommentNode {
			continue
		}
		if !blank(dom.Text(n)) {
			return true
		}
	}
	return false
}

func blank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

// Stage 9: elements without text and without media are removed. Every
// element is judged before any is removed.
func pruneEmpty(doc *dom.Document) *dom.Document {
	var empty []*html.Node
	for _, n := range dom.Elements(doc.Body()) {
		if holdsContent(n) || !blank(dom.Text(n)) {
			continue
		}
		empty = append(empty, n)
	}
	for _, n := range empty {
		dom.Remove(n)
	}
	return doc
}

func holdsContent(n *html.Node) bool {
	found := false
	dom.Walk(n, func(c *html.Node) {
		if !found && dom.IsElement(c, contentTags...) {
			found = true
		}
	})
	return found
}
