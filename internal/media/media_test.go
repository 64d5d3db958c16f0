package media

import (
	"context"
	"testing"
)

func TestLargestIncludesOriginal(t *testing.T) {
	a := Attachment{URL: "http://x/a.jpg", Width: 800, Height: 600, Renditions: []Rendition{
		{Name: "thumbnail", URL: "http://x/a-150x150.jpg", Width: 150, Height: 150},
		{Name: "large", URL: "http://x/a-1024x768.jpg", Width: 1024, Height: 768},
	}}
	if got := a.Largest().URL; got != "http://x/a-1024x768.jpg" {
		t.Fatalf("expected large rendition, got %q", got)
	}
	a.Renditions = a.Renditions[:1]
	if got := a.Largest().URL; got != "http://x/a.jpg" {
		t.Fatalf("expected original, got %q", got)
	}
}

func TestIDFromClass(t *testing.T) {
	tests := []struct {
		class string
		id    int64
		ok    bool
	}{
		{"alignnone size-full wp-image-42", 42, true},
		{"wp-image-7 aligncenter", 7, true},
		{"not-wp-image-7", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		id, ok := IDFromClass(tt.class)
		if id != tt.id || ok != tt.ok {
			t.Fatalf("IDFromClass(%q) = %d, %v", tt.class, id, ok)
		}
	}
}

func TestStem(t *testing.T) {
	stem, ext := Stem("https://cdn.example.com/uploads/2020/photo-300x200.jpg?ver=2")
	if stem != "photo" || ext != ".jpg" {
		t.Fatalf("unexpected stem %q ext %q", stem, ext)
	}
}

func TestResolveFallsBackToURL(t *testing.T) {
	lib := NewStatic(Attachment{ID: 3, URL: "http://x/p.png", Renditions: []Rendition{{URL: "http://x/p-100x100.png"}}})
	ctx := context.Background()
	if a, ok := Resolve(ctx, lib, "wp-image-99", "https://x/p-100x100.png?x=1"); !ok || a.ID != 3 {
		t.Fatalf("expected URL fallback to find attachment 3, got %v %v", a.ID, ok)
	}
	if _, ok := Resolve(ctx, lib, "", "http://x/none.png"); ok {
		t.Fatal("unknown URL must not resolve")
	}
	if _, ok := Resolve(ctx, nil, "wp-image-3", ""); ok {
		t.Fatal("nil library resolves nothing")
	}
}
