package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/wpnative/instant-articles/internal/dom"
	"github.com/wpnative/instant-articles/internal/placeholder"
	"github.com/wpnative/instant-articles/internal/rules"
)

func newTestRun(post Post) *run {
	p := newTestParser()
	return &run{
		ctx:      context.Background(),
		parser:   p,
		post:     post,
		rules:    rules.NewSet(nil, nil),
		tokens:   placeholder.New(),
		renderer: p.Renderer.Fork(),
		hooks:    NewHooks(),
		logger:   discardLogger(),
	}
}

func TestHoistIsIdempotent(t *testing.T) {
	input := `<p>a</p><figure><img src="x"/></figure><table><tbody><tr><td>1</td></tr></tbody></table><iframe src="y"></iframe>`
	doc := dom.Parse(input, "")
	before := doc.Serialize()
	hoistElements(doc)
	if got := doc.Serialize(); got != before {
		t.Fatalf("expected no change:\nbefore %s\nafter  %s", before, got)
	}
	hoistElements(doc)
	if got := doc.Serialize(); got != before {
		t.Fatalf("second run changed the document: %s", got)
	}
}

func TestHoistSplitsAncestors(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{
			`<div><p>a<img src="x">b</p></div>`,
			`<div><p>a</p></div><img src="x"/><div><p>b</p></div>`,
		},
		{
			`<div class="c"><figure><img src="x"></figure></div>`,
			`<figure><img src="x"/></figure>`,
		},
		{
			`<p><span>lead <iframe src="y"></iframe> tail</span></p>`,
			`<p><span>lead </span></p><iframe src="y"></iframe><p><span> tail</span></p>`,
		},
		{
			`<ul><li>one</li><li><video src="v"></video></li><li>three</li></ul>`,
			`<ul><li>one</li></ul><video src="v"></video><ul><li>three</li></ul>`,
		},
	}
	for _, tt := range tests {
		doc := dom.Parse(tt.in, "")
		hoistElements(doc)
		if got := doc.Serialize(); got != tt.want {
			t.Fatalf("hoist(%s):\nexpected %s\n     got %s", tt.in, tt.want, got)
		}
	}
}

func TestDedupeLeavesUniqueSources(t *testing.T) {
	inputs := []string{
		`<img src="a"><img src="a"><img src="b"><p><img src=" a "></p>`,
		`<div class="wp-caption"><img src="a"><p class="wp-caption-text">c</p></div><div class="wp-caption"><img src="a"><p class="wp-caption-text">c</p></div>`,
		`<a href="l"><img src="a"></a><a href="l"><img src="a"></a>`,
	}
	r := newTestRun(Post{})
	for _, in := range inputs {
		doc := dom.Parse(in, "")
		r.dedupeImages(doc)
		seen := map[string]bool{}
		for _, img := range doc.QueryByTag("img") {
			src := imageSource(img)
			if seen[src] {
				t.Fatalf("duplicate %q left in %s", src, doc.Serialize())
			}
			seen[src] = true
		}
	}
}

func TestDedupeKeepsSharedWrapper(t *testing.T) {
	doc := dom.Parse(`<div class="wp-caption"><img src="a"><img src="a"></div>`, "")
	newTestRun(Post{}).dedupeImages(doc)
	if got := doc.Serialize(); got != `<div class="wp-caption"><img src="a"/></div>` {
		t.Fatalf("unexpected output %s", got)
	}
}

func TestDedupeRemovesCaptionWrapper(t *testing.T) {
	doc := dom.Parse(`<p><img src="a"></p><div class="wp-caption"><img src="a"><p class="wp-caption-text">dup</p></div>`, "")
	newTestRun(Post{}).dedupeImages(doc)
	if got := doc.Serialize(); got != `<p><img src="a"/></p>` {
		t.Fatalf("unexpected output %s", got)
	}
}

func TestWrapInteractive(t *testing.T) {
	doc := dom.Parse(`<iframe src="x"></iframe><figure><iframe src="y"></iframe></figure><table><tbody><tr><td>t</td></tr></tbody></table><object data="o"><embed src="e"/></object>`, "")
	wrapInteractive(doc)
	want := `<figure class="op-interactive"><iframe src="x"></iframe></figure>` +
		`<figure><iframe src="y"></iframe></figure>` +
		`<figure class="op-interactive"><table><tbody><tr><td>t</td></tr></tbody></table></figure>` +
		`<figure class="op-interactive"><object data="o"><embed src="e"/></object></figure>`
	if got := doc.Serialize(); got != want {
		t.Fatalf("expected %s\n     got %s", want, got)
	}
}

func TestStripAttributes(t *testing.T) {
	doc := dom.Parse(`<p class="a" id="b" style="c" title="t">x</p><figure class="op-interactive" style="s" id="f"><img src="i" class="k"></figure><ul class="op-related-articles" id="r"><li>a</li></ul><ul class="menu"><li>b</li></ul>`, "")
	stripAttributes(doc)
	want := `<p title="t">x</p><figure class="op-interactive"><img src="i"/></figure><ul class="op-related-articles"><li>a</li></ul><ul><li>b</li></ul>`
	if got := doc.Serialize(); got != want {
		t.Fatalf("expected %s\n     got %s", want, got)
	}
}

func TestWrapOrphanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`text <b>bold</b><p>para</p>  <br>`, `<p>text <b>bold</b></p><p>para</p>  <br/>`},
		{`<p>a</p>tail`, `<p>a</p><p>tail</p>`},
		{"<p>a</p>\n<!-- note -->\n<p>b</p>", "<p>a</p>\n<!-- note -->\n<p>b</p>"},
	}
	for _, tt := range tests {
		doc := dom.Parse(tt.in, "")
		wrapOrphanText(doc)
		if got := doc.Serialize(); got != tt.want {
			t.Fatalf("wrapOrphanText(%q):\nexpected %q\n     got %q", tt.in, tt.want, got)
		}
	}
}

func TestPruneEmpty(t *testing.T) {
	doc := dom.Parse("<div><span></span></div><p>\u00a0</p><div><img src=\"x\"></div><p><br></p><p>ok</p><blockquote><p> </p></blockquote>", "")
	pruneEmpty(doc)
	want := `<div><img src="x"/></div><p><br/></p><p>ok</p>`
	if got := doc.Serialize(); got != want {
		t.Fatalf("expected %s\n     got %s", want, got)
	}
}

func TestPruneEmptyKeepsTableCells(t *testing.T) {
	in := `<table><tbody><tr><td>a</td><td></td></tr><tr><td></td><td>b</td></tr></tbody></table>`
	doc := dom.Parse(in, "")
	pruneEmpty(doc)
	if got := doc.Serialize(); got != in {
		t.Fatalf("expected %s\n     got %s", in, got)
	}
}

func TestDowngradeHeadings(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<h3 id="a">x</h3>`, `<h2 id="a">x</h2>`},
		{`<H6>y</H6>`, `<h2>y</h2>`},
		{`<h2>z</h2><h1>t</h1>`, `<h2>z</h2><h1>t</h1>`},
		{`<header><h5/></header>`, `<header><h2/></header>`},
		{`<hr>h3 stays text`, `<hr>h3 stays text`},
	}
	for _, tt := range tests {
		if got := downgradeHeadings(tt.in); got != tt.want {
			t.Fatalf("downgradeHeadings(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestBuildersByKind(t *testing.T) {
	bc := BuildContext{Ctx: context.Background(), Reserve: placeholder.New().Reserve}
	tests := []struct {
		kind  string
		in    string
		props rules.Properties
		want  string
	}{
		{"heading", `<div> Big   title </div>`, rules.Properties{}, `<h2>Big title</h2>`},
		{"image", `<div><img src="i.jpg"><figcaption>cap</figcaption></div>`, rules.Properties{}, `<figure><img src="i.jpg"/><figcaption>cap</figcaption></figure>`},
		{"image", `<span data-lazy="l.jpg"></span>`, rules.Properties{Source: "data-lazy"}, `<figure><img src="l.jpg"/></figure>`},
		{"video", `<div><video><source src="v.mp4"></video></div>`, rules.Properties{}, `<figure><video><source src="v.mp4"/></video></figure>`},
		{"slideshow", `<div><img src="1"><img src="2"></div>`, rules.Properties{}, `<figure class="op-slideshow"><figure><img src="1"/></figure><figure><img src="2"/></figure></figure>`},
		{"related_articles", `<div><a href="/a">A</a><a>none</a></div>`, rules.Properties{Title: "More"}, `<ul class="op-related-articles" title="More"><li><a href="/a">A</a></li></ul>`},
	}
	for _, tt := range tests {
		doc := dom.Parse(tt.in, "")
		src := dom.Clone(doc.Body().FirstChild)
		nodes, err := ElementBuilder{}.Build(bc, rules.Kind(tt.kind), src, tt.props)
		if err != nil {
			t.Fatalf("%s: %v", tt.kind, err)
		}
		if len(nodes) != 1 {
			t.Fatalf("%s: expected one node, got %d", tt.kind, len(nodes))
		}
		if got := dom.Render(nodes[0]); got != tt.want {
			t.Fatalf("%s:\nexpected %s\n     got %s", tt.kind, tt.want, got)
		}
	}
}

func TestBuilderWithoutSource(t *testing.T) {
	bc := BuildContext{Ctx: context.Background(), Reserve: placeholder.New().Reserve}
	src := dom.NewElement("div")
	for _, kind := range []rules.Kind{rules.KindImage, rules.KindVideo, rules.KindSlideshow, rules.KindRelatedArticles} {
		if _, err := (ElementBuilder{}).Build(bc, kind, src, rules.Properties{}); !errors.Is(err, ErrNoSource) {
			t.Fatalf("%s: expected ErrNoSource, got %v", kind, err)
		}
	}
}

func TestOpaqueKindsReserveMarkup(t *testing.T) {
	tokens := placeholder.New()
	bc := BuildContext{Ctx: context.Background(), Reserve: tokens.Reserve}
	doc := dom.Parse(`<div class="tweet"><blockquote>hi</blockquote></div>`, "")
	nodes, err := ElementBuilder{}.Build(bc, rules.KindSocialEmbed, dom.Clone(doc.Body().FirstChild), rules.Properties{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := tokens.RestoreAll(dom.Render(nodes[0]))
	want := `<figure class="op-social"><iframe><div class="tweet"><blockquote>hi</blockquote></div></iframe></figure>`
	if got != want {
		t.Fatalf("expected %s\n     got %s", want, got)
	}
}
