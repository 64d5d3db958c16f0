package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// QueryByTag returns every element with the given tag beneath the body, in
// document order. The result is a snapshot, not a live view.
func (d *Document) QueryByTag(tag string) []*html.Node {
	tag = strings.ToLower(tag)
	var out []*html.Node
	Walk(d.body, func(n *html.Node) {
		if n != d.body && n.Type == html.ElementNode && Tag(n) == tag {
			out = append(out, n)
		}
	})
	return out
}

// QueryBySelector returns the elements matched by a CSS selector, or by a
// path expression when the selector starts with "/". Matching nothing, or a
// selector that does not parse, yields an empty slice.
func (d *Document) QueryBySelector(selector string) []*html.Node {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil
	}
	if IsPathExpression(selector) {
		return evaluatePath(d.root, selector)
	}
	nodes := goquery.NewDocumentFromNode(d.body).Find(selector).Nodes
	out := make([]*html.Node, len(nodes))
	copy(out, nodes)
	return out
}

// IsPathExpression reports whether a selector is a path expression rather
// than CSS. Path expressions start with the path separator.
func IsPathExpression(selector string) bool {
	return strings.HasPrefix(strings.TrimSpace(selector), "/")
}
