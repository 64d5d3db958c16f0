package embed

import (
	"strings"
	"testing"
)

func TestAutoembedStandaloneLines(t *testing.T) {
	r := Default()
	in := "Intro text https://youtu.be/abcdefgh inline\nhttps://www.youtube.com/watch?v=dQw4w9WgXcQ\n<p>https://vimeo.com/12345</p>\nhttps://example.com/nothing"
	out := r.Autoembed(in)
	lines := strings.Split(out, "\n")
	if lines[0] != "Intro text https://youtu.be/abcdefgh inline" {
		t.Fatalf("inline URL must stay text, got %q", lines[0])
	}
	if !strings.Contains(lines[1], `src="https://www.youtube.com/embed/dQw4w9WgXcQ"`) {
		t.Fatalf("expected youtube iframe, got %q", lines[1])
	}
	if !strings.Contains(lines[2], `src="https://player.vimeo.com/video/12345"`) {
		t.Fatalf("expected vimeo iframe, got %q", lines[2])
	}
	if lines[3] != "https://example.com/nothing" {
		t.Fatalf("unknown provider must stay literal, got %q", lines[3])
	}
}

func TestInterceptStacksAndRestores(t *testing.T) {
	r := Default()
	restoreOuter := r.Intercept(func(name, out string) string { return "[" + name + "]" })
	restoreInner := r.Intercept(func(name, out string) string { return "inner:" + out })

	out, ok := r.Render("https://twitter.com/jack/status/20")
	if !ok || out != "[twitter]" {
		t.Fatalf("expected outer interceptor to see inner output last, got %q", out)
	}
	restoreInner()
	restoreOuter()
	out, _ = r.Render("https://twitter.com/jack/status/20")
	if !strings.HasPrefix(out, `<blockquote class="twitter-tweet">`) {
		t.Fatalf("expected raw provider output after restore, got %q", out)
	}
}

func TestCloneDropsInterceptors(t *testing.T) {
	r := Default()
	defer r.Intercept(func(string, string) string { return "x" })()
	out, _ := r.Clone().Render("https://www.instagram.com/p/abc/?utm=1")
	if !strings.Contains(out, `data-instgrm-permalink="https://www.instagram.com/p/abc/"`) {
		t.Fatalf("unexpected clone output %q", out)
	}
}
