package dom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// ErrNotNodeSet is returned for path expressions that compile but yield a
// value, such as count(//p), instead of selecting nodes.
var ErrNotNodeSet = errors.New("path expression does not select nodes")

// CompilePath compiles an XPath 1.0 expression and checks that it selects
// nodes.
func CompilePath(expr string) (*xpath.Expr, error) {
	e, err := xpath.Compile(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("compile path %q: %w", expr, err)
	}
	empty := &html.Node{Type: html.DocumentNode}
	if _, ok := e.Evaluate(htmlquery.CreateXPathNavigator(empty)).(*xpath.NodeIterator); !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotNodeSet, expr)
	}
	return e, nil
}

// ValidPath reports whether expr is a path expression that selects nodes.
func ValidPath(expr string) bool {
	_, err := CompilePath(expr)
	return err == nil
}

// evaluatePath returns the elements selected by expr in document order.
// Attribute and text results are dropped.
func evaluatePath(root *html.Node, expr string) []*html.Node {
	e, err := CompilePath(expr)
	if err != nil {
		return nil
	}
	var out []*html.Node
	for _, n := range htmlquery.QuerySelectorAll(root, e) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out
}
