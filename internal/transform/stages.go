package transform

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/wpnative/instant-articles/internal/dom"
	"github.com/wpnative/instant-articles/internal/media"
)

// Elements that are lifted to the top level of the body.
var hoistable = []string{"iframe", "embed", "object", "figure", "img", "table", "video", "audio"}

// captionWrapper returns the caption container around img, looking through
// an enclosing link and the paragraph autop may have added.
func captionWrapper(img *html.Node) *html.Node {
	p := img.Parent
	for i := 0; i < 2 && dom.IsElement(p, "a", "p") && !isCaptionWrapper(p); i++ {
		p = p.Parent
	}
	if p == nil || !isCaptionWrapper(p) {
		return nil
	}
	return p
}

func isCaptionWrapper(n *html.Node) bool {
	switch dom.Tag(n) {
	case "div", "p":
		return dom.ClassContains(n, "wp-caption")
	case "figure":
		return dom.ClassContains(n, "wp-caption") || dom.ClassContains(n, "wp-block-image")
	}
	return false
}

func countImages(n *html.Node) int {
	count := 0
	dom.Walk(n, func(c *html.Node) {
		if dom.IsElement(c, "img") {
			count++
		}
	})
	return count
}

// removeImage drops img together with its caption wrapper. A wrapper that
// holds other images stays and only img goes.
func removeImage(img *html.Node) {
	if w := captionWrapper(img); w != nil && countImages(w) == 1 {
		dom.Remove(w)
		return
	}
	if a := img.Parent; dom.IsElement(a, "a") && a.FirstChild == img && a.LastChild == img {
		dom.Remove(a)
		return
	}
	dom.Remove(img)
}

func imageSource(img *html.Node) string {
	return strings.TrimSpace(dom.AttrOr(img, "src", ""))
}

// Stage 1: keep the first occurrence of every image source.
func (r *run) dedupeImages(doc *dom.Document) *dom.Document {
	seen := make(map[string]bool)
	for _, img := range doc.QueryByTag("img") {
		if !doc.Contains(img) {
			continue
		}
		src := imageSource(img)
		if src == "" {
			continue
		}
		if seen[src] {
			r.logger.Debug("removing duplicate image", "src", src)
			removeImage(img)
			continue
		}
		seen[src] = true
	}
	return doc
}

// Stage 2: the cover image is rendered by the article header, so every
// size of it is dropped from the body.
func (r *run) stripCoverImage(doc *dom.Document) *dom.Document {
	cover := r.post.Cover
	if cover == nil || cover.URL == "" {
		return doc
	}
	stem, ext := media.Stem(cover.URL)
	if stem == "" || stem == "." || stem == "/" {
		return doc
	}
	sized, err := regexp.Compile(`(?i)/` + regexp.QuoteMeta(stem) + `(-\d+x\d+)?` + regexp.QuoteMeta(ext) + `$`)
	if err != nil {
		return doc
	}
	for _, img := range doc.QueryByTag("img") {
		if !doc.Contains(img) {
			continue
		}
		src := imageSource(img)
		if src == "" {
			continue
		}
		p := src
		if u, err := url.Parse(src); err == nil {
			p = u.Path
		}
		if sized.MatchString(p) || cover.Has(src) {
			r.logger.Debug("removing cover image from body", "src", src)
			removeImage(img)
		}
	}
	return doc
}

// Stage 3: images that do not resolve are removed. All checks finish
// before anything is removed.
func (r *run) verifyImages(doc *dom.Document) *dom.Document {
	if !r.parser.Settings.CheckImages || r.parser.Images == nil {
		return doc
	}
	type candidate struct {
		img *html.Node
		url string
	}
	var (
		candidates []candidate
		urls       []string
	)
	for _, img := range doc.QueryByTag("img") {
		src := imageSource(img)
		if src == "" {
			removeImage(img)
			continue
		}
		abs := absoluteURL(r.parser.Settings.SiteURL, src)
		candidates = append(candidates, candidate{img, abs})
		urls = append(urls, abs)
	}
	if len(urls) == 0 {
		return doc
	}
	reachable := r.parser.Images.Check(r.ctx, urls)
	for _, c := range candidates {
		if reachable[c.url] || !doc.Contains(c.img) {
			continue
		}
		r.logger.Debug("removing unreachable image", "src", c.url)
		removeImage(c.img)
	}
	return doc
}

// absoluteURL resolves relative and protocol-relative sources against the
// site URL.
func absoluteURL(base, src string) string {
	if base == "" || strings.HasPrefix(src, "data:") {
		return src
	}
	b, err := url.Parse(base)
	if err != nil {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	return b.ResolveReference(u).String()
}

// Stage 4: every image becomes a figure holding the largest stored
// rendition and its caption.
func (r *run) wrapImages(doc *dom.Document) *dom.Document {
	for _, img := range doc.QueryByTag("img") {
		if !doc.Contains(img) {
			continue
		}
		src := imageSource(img)
		if src == "" {
			removeImage(img)
			continue
		}
		if a, ok := media.Resolve(r.ctx, r.parser.Media, dom.AttrOr(img, "class", ""), src); ok {
			if largest := a.Largest(); largest.URL != "" {
				src = largest.URL
			}
		}

		target := img
		caption := ""
		if w := imageWrapper(img); w != nil {
			target = w
			caption = captionText(w)
		}
		dom.Replace(target, r.imageFigure(src, caption))
	}
	return doc
}

// imageWrapper returns the element that stands for img as a whole: a
// caption container, or a plain figure, holding no other image.
func imageWrapper(img *html.Node) *html.Node {
	w := captionWrapper(img)
	if w == nil {
		p := img.Parent
		if dom.IsElement(p, "a") {
			p = p.Parent
		}
		if dom.IsElement(p, "figure") && !dom.ClassContains(p, "op-") {
			w = p
		}
	}
	if w == nil || countImages(w) != 1 {
		return nil
	}
	return w
}

func captionText(w *html.Node) string {
	var caption *html.Node
	dom.Walk(w, func(n *html.Node) {
		if caption != nil || n == w {
			return
		}
		if dom.IsElement(n, "figcaption") || dom.IsElement(n) && dom.ClassContains(n, "wp-caption-text") {
			caption = n
		}
	})
	if caption == nil {
		return ""
	}
	return strings.Join(strings.Fields(dom.Text(caption)), " ")
}

func (r *run) imageFigure(src, caption string) *html.Node {
	fig := dom.NewElement("figure")
	if fb := r.feedback(); fb != "" {
		dom.SetAttr(fig, "data-feedback", fb)
	}
	fig.AppendChild(dom.NewElement("img", dom.A("src", src)))
	if caption != "" {
		fc := dom.NewElement("figcaption")
		fc.AppendChild(dom.NewText(caption))
		fig.AppendChild(fc)
	}
	return fig
}

func (r *run) feedback() string {
	var parts []string
	if toggle(r.post.Overrides.Likes, r.parser.Settings.Likes) {
		parts = append(parts, "fb:likes")
	}
	if toggle(r.post.Overrides.Comments, r.parser.Settings.Comments) {
		parts = append(parts, "fb:comments")
	}
	return strings.Join(parts, ",")
}

// Stage 5: media and tables may only appear at the top level. The element
// is rotated up one level at a time; its former parent is split around it
// and whatever is left empty is dropped.
func hoistElements(doc *dom.Document) *dom.Document {
	body := doc.Body()
	isHoistable := func(n *html.Node) bool { return dom.IsElement(n, hoistable...) }
	for _, n := range dom.Elements(body) {
		if !isHoistable(n) || !doc.Contains(n) {
			continue
		}
		if dom.HasAncestor(n, body, isHoistable) {
			continue
		}
		hoist(body, n)
	}
	return doc
}

func hoist(body, n *html.Node) {
	for n.Parent != nil && n.Parent != body {
		parent := n.Parent
		after := dom.ShallowClone(parent)
		for s := n.NextSibling; s != nil; {
			next := s.NextSibling
			dom.AppendChild(after, s)
			s = next
		}
		dom.InsertAfter(parent, n)
		if after.FirstChild != nil {
			dom.InsertAfter(n, after)
		}
		if parent.FirstChild == nil {
			dom.Remove(parent)
		}
	}
}
