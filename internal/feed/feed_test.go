package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/wpnative/instant-articles/internal/article"
	"github.com/wpnative/instant-articles/internal/store"
)

type fakePosts []store.Post

func (f fakePosts) RecentPosts(_ context.Context, limit int) ([]store.Post, error) {
	if limit < len(f) {
		return f[:limit], nil
	}
	return f, nil
}

type fakeArticles map[int64]string

func (f fakeArticles) Get(_ context.Context, id int64) (article.Result, error) {
	body, ok := f[id]
	if !ok {
		return article.Result{}, errors.New("transform failed")
	}
	return article.Result{PostID: id, Body: body}, nil
}

func TestGeneratorWrite(t *testing.T) {
	modified := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	gen := &Generator{
		SiteURL:  "https://example.com",
		Title:    "Example",
		Posts:    fakePosts{{ID: 2, Modified: modified}, {ID: 1, Modified: modified}, {ID: 9, Modified: modified}},
		Articles: fakeArticles{2: "<p>second ]]> tricky</p>", 1: "<p>first</p>"},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return modified },
	}

	var buf bytes.Buffer
	if err := gen.Write(context.Background(), &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var parsed struct {
		Channel struct {
			Title string `xml:"title"`
			Items []struct {
				Link    string `xml:"link"`
				PubDate string `xml:"pubDate"`
				Content string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("feed is not valid XML: %v\n%s", err, buf.String())
	}
	if parsed.Channel.Title != "Example" {
		t.Fatalf("unexpected title %q", parsed.Channel.Title)
	}
	if len(parsed.Channel.Items) != 2 {
		t.Fatalf("expected failing post to be skipped, got %d items", len(parsed.Channel.Items))
	}
	item := parsed.Channel.Items[0]
	if item.Link != "https://example.com/?p=2" {
		t.Fatalf("unexpected link %q", item.Link)
	}
	if item.PubDate != "Wed, 01 May 2024 10:00:00 +0000" {
		t.Fatalf("unexpected pubDate %q", item.PubDate)
	}
	if !strings.Contains(item.Content, "<article><p>second ]]> tricky</p></article>") {
		t.Fatalf("article markup should survive the CDATA section, got %q", item.Content)
	}
	if !strings.Contains(item.Content, `<link rel="canonical" href="https://example.com/?p=2">`) {
		t.Fatalf("expected canonical link, got %q", item.Content)
	}
}

func TestGeneratorLimit(t *testing.T) {
	gen := &Generator{
		SiteURL:  "https://example.com",
		Limit:    1,
		Posts:    fakePosts{{ID: 1}, {ID: 2}},
		Articles: fakeArticles{1: "<p>a</p>", 2: "<p>b</p>"},
	}
	var buf bytes.Buffer
	if err := gen.Write(context.Background(), &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n := strings.Count(buf.String(), "<item>"); n != 1 {
		t.Fatalf("expected one item, got %d", n)
	}
}
