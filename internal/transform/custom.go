package transform

import (
	"golang.org/x/net/html"

	"github.com/wpnative/instant-articles/internal/dom"
	"github.com/wpnative/instant-articles/internal/rules"
)

// applyCustomRules runs the selector-driven rules in registration order.
// Matches are handled last to first, so replacing a match never disturbs
// the position of an earlier one.
func (r *run) applyCustomRules(doc *dom.Document) *dom.Document {
	for _, rule := range r.rules.Custom() {
		if r.ctx.Err() != nil {
			return doc
		}
		matches := doc.QueryBySelector(rule.Selector)
		if len(matches) == 0 {
			continue
		}
		logger := r.logger.With("rule", rule.ID, "selector", rule.Selector)

		if rule.Rule == rules.ActionRemove {
			for i := len(matches) - 1; i >= 0; i-- {
				if n := matches[i]; n != doc.Body() && doc.Contains(n) {
					dom.Remove(n)
				}
			}
			continue
		}

		kind, ok := rule.Kind()
		if !ok {
			logger.Debug("skipping rule with unknown element kind", "kind", rule.Rule)
			continue
		}
		props, err := rule.Properties()
		if err != nil {
			logger.Warn("skipping rule with unreadable properties", "error", err)
			continue
		}
		bc := BuildContext{Ctx: r.ctx, Post: r.post, Doc: doc, Reserve: r.tokens.Reserve}
		for i := len(matches) - 1; i >= 0; i-- {
			n := matches[i]
			if n == doc.Body() || !doc.Contains(n) {
				continue
			}
			built, err := r.parser.elements().Build(bc, kind, unwrapArticle(dom.Clone(n)), props)
			if err != nil {
				logger.Debug("element not built", "kind", kind, "error", err)
				continue
			}
			dom.Replace(n, built...)
		}
	}
	return doc
}

func (p *ContentParser) elements() ElementTransformer {
	if p.Elements == nil {
		return ElementBuilder{}
	}
	return p.Elements
}

// unwrapArticle descends through document and article wrappers that hold
// a single element, dropping article headers and footers on the way.
func unwrapArticle(n *html.Node) *html.Node {
	for dom.IsElement(n, "html", "body", "article") {
		if dom.IsElement(n, "article") {
			for _, c := range dom.Children(n) {
				if dom.IsElement(c, "header", "footer") {
					dom.Remove(c)
				}
			}
		}
		only := soleElement(n)
		if only == nil {
			break
		}
		n = only
	}
	dom.Detach(n)
	return n
}

// soleElement returns the only element child of n, ignoring blank text.
func soleElement(n *html.Node) *html.Node {
	var only *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode:
			if only != nil {
				return nil
			}
			only = c
		case c.Type == html.TextNode && !blank(c.Data):
			return nil
		}
	}
	return only
}
