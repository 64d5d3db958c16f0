package shortcode

import (
	"testing"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Add("b", func(_ Attrs, content, _ string) string { return "<b>" + content + "</b>" })
	r.Add("video", func(a Attrs, _, _ string) string { return "<video src=\"" + a["src"] + "\"></video>" })
	return r
}

func TestDoExpandsRegisteredTags(t *testing.T) {
	r := newTestRegistry()
	tests := []struct {
		in, want string
	}{
		{"x [b]bold[/b] y", "x <b>bold</b> y"},
		{`[video src="a.mp4"]`, `<video src="a.mp4"></video>`},
		{`[video src='a.mp4' /]`, `<video src="a.mp4"></video>`},
		{"[unknown]x[/unknown]", "[unknown]x[/unknown]"},
		{"[[b]]", "[b]"},
		{"[bold]", "[bold]"},
		{"no brackets", "no brackets"},
		{"[b", "[b"},
	}
	for _, tt := range tests {
		if got := r.Do(tt.in); got != tt.want {
			t.Fatalf("Do(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestParseAttrs(t *testing.T) {
	a := ParseAttrs(`ids="1,2" Size=large 'quoted' bare`)
	want := Attrs{"ids": "1,2", "size": "large", "0": "quoted", "1": "bare"}
	if len(a) != len(want) {
		t.Fatalf("expected %v, got %v", want, a)
	}
	for k, v := range want {
		if a[k] != v {
			t.Fatalf("attr %q: expected %q, got %q", k, v, a[k])
		}
	}
}

func TestOverrideRestoresLIFO(t *testing.T) {
	r := newTestRegistry()
	outer := r.Override(map[string]Handler{
		"b":   func(Attrs, string, string) string { return "outer" },
		"new": func(Attrs, string, string) string { return "new" },
	})
	inner := r.Override(map[string]Handler{"b": nil})

	if got := r.Do("[b]x[/b][new]"); got != "[b]x[/b]new" {
		t.Fatalf("unexpected output inside overrides: %q", got)
	}
	inner()
	if got := r.Do("[b]x[/b]"); got != "outer" {
		t.Fatalf("expected outer override, got %q", got)
	}
	outer()
	if got := r.Do("[b]x[/b]"); got != "<b>x</b>" {
		t.Fatalf("expected original handler, got %q", got)
	}
	if r.Has("new") {
		t.Fatal("scoped tag should be gone after restore")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := newTestRegistry()
	c := r.Clone()
	c.Remove("b")
	if !r.Has("b") || c.Has("b") {
		t.Fatal("clone must not share handlers")
	}
}

func TestCaptionBuiltin(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	tests := []struct {
		in, want string
	}{
		{
			`[caption id="attachment_5" align="alignleft"]<img src="a.jpg"> A cat[/caption]`,
			`<div id="attachment_5" class="wp-caption alignleft"><img src="a.jpg"><p class="wp-caption-text">A cat</p></div>`,
		},
		{
			`[caption caption="Given"]<a href="x"><img src="a.jpg"></a>ignored[/caption]`,
			`<div class="wp-caption"><a href="x"><img src="a.jpg"></a><p class="wp-caption-text">Given</p></div>`,
		},
		{`[wp_caption]no image[/wp_caption]`, `no image`},
	}
	for _, tt := range tests {
		if got := r.Do(tt.in); got != tt.want {
			t.Fatalf("Do(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
