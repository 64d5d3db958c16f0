package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NewElement creates a detached element. Attributes are kept in the order given.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	tag = strings.ToLower(tag)
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, a := range attrs {
		SetAttr(n, a.Key, a.Val)
	}
	return n
}

// NewText creates a detached text node. The value is escaped on render.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// A is shorthand for building an attribute.
func A(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// Tag returns the lower-case tag name of an element, or "" for other nodes.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// IsElement reports whether n is an element with one of the given tags.
// With no tags it reports whether n is an element at all.
func IsElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	t := Tag(n)
	for _, want := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// Attr returns the value of an attribute.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when it is absent.
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// SetAttr updates an attribute in place, or appends it, so insertion order
// is kept.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes every attribute with the given key.
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// ClassContains reports whether the class attribute contains substr.
func ClassContains(n *html.Node, substr string) bool {
	class, ok := Attr(n, "class")
	return ok && strings.Contains(class, substr)
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Remove is Detach under the name the pipeline stages read best with.
func Remove(n *html.Node) { Detach(n) }

// AppendChild moves child to the end of parent's children, detaching it
// from any previous parent first.
func AppendChild(parent, child *html.Node) {
	Detach(child)
	parent.AppendChild(child)
}

// InsertBefore moves n in front of ref under ref's parent. A nil ref appends.
func InsertBefore(parent, n, ref *html.Node) {
	Detach(n)
	parent.InsertBefore(n, ref)
}

// InsertAfter moves n directly behind ref.
func InsertAfter(ref, n *html.Node) {
	Detach(n)
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

// ReplaceChild puts replacement where old was. old ends up detached.
func ReplaceChild(parent, old, replacement *html.Node) {
	Detach(replacement)
	parent.InsertBefore(replacement, old)
	parent.RemoveChild(old)
}

// RemoveChild detaches child from parent.
func RemoveChild(parent, child *html.Node) {
	if child.Parent == parent {
		parent.RemoveChild(child)
	}
}

// Replace swaps n for one or more nodes in its current position.
func Replace(n *html.Node, replacements ...*html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for _, r := range replacements {
		Detach(r)
		parent.InsertBefore(r, n)
	}
	parent.RemoveChild(n)
}

// Wrap puts wrapper in n's position and moves n inside it.
func Wrap(n, wrapper *html.Node) {
	if n.Parent != nil {
		ReplaceChild(n.Parent, n, wrapper)
	}
	wrapper.AppendChild(n)
}

// Clone deep-copies n. The copy is detached from any tree.
func Clone(n *html.Node) *html.Node {
	c := ShallowClone(n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// ShallowClone copies n's type, name and attributes without children.
func ShallowClone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	return c
}

// Children snapshots the child list so callers may mutate while iterating.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Elements snapshots every element beneath root in document order.
func Elements(root *html.Node) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) {
		if n != root && n.Type == html.ElementNode {
			out = append(out, n)
		}
	})
	return out
}

// Walk visits root and its descendants in document order.
func Walk(root *html.Node, fn func(*html.Node)) {
	fn(root)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}

// HasAncestor reports whether an ancestor of n, stopping before stop,
// satisfies match.
func HasAncestor(n, stop *html.Node, match func(*html.Node) bool) bool {
	for p := n.Parent; p != nil && p != stop; p = p.Parent {
		if match(p) {
			return true
		}
	}
	return false
}

// Render serialises a single node as UTF-8 markup.
func Render(n *html.Node) string {
	var b strings.Builder
	_ = html.Render(&b, n)
	return b.String()
}
