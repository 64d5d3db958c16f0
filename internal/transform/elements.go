package transform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/wpnative/instant-articles/internal/dom"
	"github.com/wpnative/instant-articles/internal/rules"
)

// ErrNoSource is returned when a media element kind finds no URL in the
// matched markup.
var ErrNoSource = errors.New("no source in matched element")

// BuildContext is what an element builder may use besides the match.
type BuildContext struct {
	Ctx  context.Context
	Post Post
	Doc  *dom.Document
	// Reserve hides opaque markup behind a placeholder token.
	Reserve func(payload string) string
}

// ElementTransformer turns a matched element into Instant Article
// elements. src is a detached copy of the match; the builder may take it
// apart. Returning no nodes removes the match.
type ElementTransformer interface {
	Build(bc BuildContext, kind rules.Kind, src *html.Node, props rules.Properties) ([]*html.Node, error)
}

// ElementBuilder is the default ElementTransformer.
type ElementBuilder struct{}

// Build implements ElementTransformer.
func (ElementBuilder) Build(bc BuildContext, kind rules.Kind, src *html.Node, props rules.Properties) ([]*html.Node, error) {
	switch kind {
	case rules.KindParagraph:
		return one(adopt(dom.NewElement("p"), src)), nil
	case rules.KindHeading:
		return one(textElement("h2", dom.Text(src))), nil
	case rules.KindBlockquote:
		return one(adopt(dom.NewElement("blockquote"), src)), nil
	case rules.KindPullquote:
		return buildPullquote(src, props), nil
	case rules.KindImage:
		return buildImage(src, props)
	case rules.KindVideo:
		return buildVideo(src, props)
	case rules.KindInteractive:
		return buildFramed(bc, "op-interactive", src, props), nil
	case rules.KindAd:
		return buildFramed(bc, "op-ad", src, props), nil
	case rules.KindSocialEmbed:
		fig := dom.NewElement("figure", dom.A("class", "op-social"))
		fig.AppendChild(dom.NewText(bc.Reserve("<iframe>" + dom.Render(src) + "</iframe>")))
		return one(fig), nil
	case rules.KindSlideshow:
		return buildSlideshow(src, props)
	case rules.KindRelatedArticles:
		return buildRelated(src, props)
	}
	return nil, fmt.Errorf("%w: %q", rules.ErrUnknownKind, kind)
}

func one(n *html.Node) []*html.Node { return []*html.Node{n} }

// adopt moves the children of src into el. A src that is itself a text
// node is moved whole.
func adopt(el, src *html.Node) *html.Node {
	if src.Type != html.ElementNode {
		dom.AppendChild(el, src)
		return el
	}
	for _, c := range dom.Children(src) {
		dom.AppendChild(el, c)
	}
	return el
}

func textElement(tag, text string) *html.Node {
	el := dom.NewElement(tag)
	el.AppendChild(dom.NewText(strings.Join(strings.Fields(text), " ")))
	return el
}

// find runs a CSS selector inside a detached subtree. The root itself may
// match.
func find(src *html.Node, selector string) []*html.Node {
	if selector == "" {
		return nil
	}
	sel := goquery.NewDocumentFromNode(src)
	if self := sel.Filter(selector); self.Length() > 0 {
		return self.Nodes
	}
	return sel.Find(selector).Nodes
}

// sourceURL reads the media URL from src or its first descendant that
// carries the source attribute.
func sourceURL(src *html.Node, props rules.Properties, tags ...string) string {
	attr := props.Source
	if attr == "" {
		attr = "src"
	}
	if v := strings.TrimSpace(dom.AttrOr(src, attr, "")); v != "" {
		return v
	}
	found := ""
	dom.Walk(src, func(n *html.Node) {
		if found != "" || n == src || !dom.IsElement(n, tags...) {
			return
		}
		found = strings.TrimSpace(dom.AttrOr(n, attr, ""))
	})
	return found
}

// captionFor extracts and detaches the caption named by props, falling
// back to a figcaption.
func captionFor(src *html.Node, props rules.Properties) string {
	selector := props.Caption
	if selector == "" {
		selector = "figcaption"
	}
	nodes := find(src, selector)
	if len(nodes) == 0 || nodes[0] == src {
		return ""
	}
	text := strings.Join(strings.Fields(dom.Text(nodes[0])), " ")
	dom.Remove(nodes[0])
	return text
}

func withCaption(fig *html.Node, caption string) *html.Node {
	if caption != "" {
		fig.AppendChild(textElement("figcaption", caption))
	}
	return fig
}

func buildPullquote(src *html.Node, props rules.Properties) []*html.Node {
	cite := ""
	if props.Caption != "" {
		cite = captionFor(src, props)
	}
	aside := textElement("aside", dom.Text(src))
	if cite != "" {
		aside.AppendChild(textElement("cite", cite))
	}
	return one(aside)
}

func buildImage(src *html.Node, props rules.Properties) ([]*html.Node, error) {
	u := sourceURL(src, props, "img")
	if u == "" {
		return nil, ErrNoSource
	}
	fig := dom.NewElement("figure")
	fig.AppendChild(dom.NewElement("img", dom.A("src", u)))
	return one(withCaption(fig, captionFor(src, props))), nil
}

func buildVideo(src *html.Node, props rules.Properties) ([]*html.Node, error) {
	u := sourceURL(src, props, "video", "source")
	if u == "" {
		return nil, ErrNoSource
	}
	video := dom.NewElement("video")
	video.AppendChild(dom.NewElement("source", dom.A("src", u)))
	fig := dom.NewElement("figure")
	fig.AppendChild(video)
	return one(withCaption(fig, captionFor(src, props))), nil
}

// buildFramed makes an iframe figure. A match with a source URL becomes a
// plain iframe; anything else is embedded opaquely.
func buildFramed(bc BuildContext, class string, src *html.Node, props rules.Properties) []*html.Node {
	fig := dom.NewElement("figure", dom.A("class", class))
	if u := sourceURL(src, props, "iframe"); u != "" {
		frame := dom.NewElement("iframe", dom.A("src", u))
		if w := dimension(props.Width, src, "width"); w != "" {
			dom.SetAttr(frame, "width", w)
		}
		if h := dimension(props.Height, src, "height"); h != "" {
			dom.SetAttr(frame, "height", h)
		}
		fig.AppendChild(frame)
		return one(fig)
	}
	markup := dom.Render(src)
	if src.Type == html.ElementNode {
		markup = innerHTML(src)
	}
	fig.AppendChild(dom.NewText(bc.Reserve("<iframe>" + markup + "</iframe>")))
	return one(fig)
}

func innerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(dom.Render(c))
	}
	return b.String()
}

func dimension(fixed int, src *html.Node, attr string) string {
	if fixed > 0 {
		return strconv.Itoa(fixed)
	}
	if v, err := strconv.Atoi(dom.AttrOr(src, attr, "")); err == nil && v > 0 {
		return strconv.Itoa(v)
	}
	return ""
}

func buildSlideshow(src *html.Node, props rules.Properties) ([]*html.Node, error) {
	attr := props.Source
	if attr == "" {
		attr = "src"
	}
	show := dom.NewElement("figure", dom.A("class", "op-slideshow"))
	dom.Walk(src, func(n *html.Node) {
		if !dom.IsElement(n, "img") {
			return
		}
		if u := strings.TrimSpace(dom.AttrOr(n, attr, "")); u != "" {
			fig := dom.NewElement("figure")
			fig.AppendChild(dom.NewElement("img", dom.A("src", u)))
			show.AppendChild(fig)
		}
	})
	if show.FirstChild == nil {
		return nil, ErrNoSource
	}
	return one(show), nil
}

func buildRelated(src *html.Node, props rules.Properties) ([]*html.Node, error) {
	list := dom.NewElement("ul", dom.A("class", "op-related-articles"))
	if props.Title != "" {
		dom.SetAttr(list, "title", props.Title)
	}
	dom.Walk(src, func(n *html.Node) {
		href := strings.TrimSpace(dom.AttrOr(n, "href", ""))
		if !dom.IsElement(n, "a") || href == "" {
			return
		}
		a := textElement("a", dom.Text(n))
		dom.SetAttr(a, "href", href)
		li := dom.NewElement("li")
		li.AppendChild(a)
		list.AppendChild(li)
	})
	if list.FirstChild == nil {
		return nil, ErrNoSource
	}
	return one(list), nil
}
