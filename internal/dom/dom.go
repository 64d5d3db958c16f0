// Package dom is the mutable HTML document model the content pipeline
// operates on. It wraps golang.org/x/net/html trees: a Document owns one
// parsed post body, and the package-level helpers mutate *html.Node values
// while keeping the single-parent invariant.
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultCharset is used when no charset, or an unknown one, is given.
const DefaultCharset = "UTF-8"

// Document is one parsed post body. It is created per transformation and
// discarded after Serialize.
type Document struct {
	root    *html.Node
	body    *html.Node
	charset string
	enc     encoding.Encoding // nil for UTF-8

	// Warnings collects tolerated parse problems. They never fail a run.
	Warnings []string
}

// Parse builds a Document from a post body fragment. Malformed markup never
// fails: the fragment is wrapped in a minimal document shell and whatever
// tree the HTML5 parser recovers is used.
func Parse(content string, charset string) *Document {
	d := &Document{charset: DefaultCharset}
	d.setCharset(charset)

	shell := fmt.Sprintf("<!DOCTYPE html><html><head><meta charset=\"%s\"></head><body>%s</body></html>", d.charset, content)
	root, err := html.Parse(strings.NewReader(shell))
	if err != nil {
		d.Warnings = append(d.Warnings, fmt.Sprintf("parse: %v", err))
		root = emptyShell()
	}
	d.root = root
	d.body = findBody(root)
	if d.body == nil {
		d.Warnings = append(d.Warnings, "parse: no body element recovered")
		d.root = emptyShell()
		d.body = findBody(d.root)
	}
	return d
}

func (d *Document) setCharset(charset string) {
	charset = strings.TrimSpace(charset)
	if charset == "" {
		return
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		d.Warnings = append(d.Warnings, fmt.Sprintf("charset %q: %v; using %s", charset, err, DefaultCharset))
		return
	}
	name, err := htmlindex.Name(enc)
	if err != nil || name == "utf-8" {
		return
	}
	d.charset = charset
	d.enc = enc
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body container. Every content node descends from it.
func (d *Document) Body() *html.Node { return d.body }

// Charset returns the effective output charset.
func (d *Document) Charset() string { return d.charset }

// Contains reports whether n is still attached beneath the body.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.body {
			return true
		}
	}
	return false
}

// Serialize renders the body's children. Element and attribute order are
// preserved; characters the configured charset cannot represent are written
// as numeric character references.
func (d *Document) Serialize() string {
	var b strings.Builder
	for c := d.body.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return d.EscapeUnsupported(b.String())
}

// InnerHTML renders the children of n, escaped for the document charset.
func (d *Document) InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return d.EscapeUnsupported(b.String())
}

// EscapeUnsupported rewrites characters the document charset can not
// represent as numeric character references. It is a no-op for UTF-8.
func (d *Document) EscapeUnsupported(s string) string {
	if d.enc == nil {
		return s
	}
	encoded, err := encoding.HTMLEscapeUnsupported(d.enc.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	decoded, err := d.enc.NewDecoder().String(encoded)
	if err != nil {
		return s
	}
	return decoded
}

// ParseFragment parses markup in the context of the body element and returns
// the detached top-level nodes.
func (d *Document) ParseFragment(markup string) []*html.Node {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		d.Warnings = append(d.Warnings, fmt.Sprintf("fragment: %v", err))
		return nil
	}
	return nodes
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func emptyShell() *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	htmlEl := NewElement("html")
	doc.AppendChild(htmlEl)
	htmlEl.AppendChild(NewElement("head"))
	htmlEl.AppendChild(NewElement("body"))
	return doc
}
