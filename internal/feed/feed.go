// Package feed publishes instant articles as an RSS 2.0 feed, one item per
// recently modified post with the article markup in content:encoded.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/wpnative/instant-articles/internal/article"
	"github.com/wpnative/instant-articles/internal/store"
)

const (
	DefaultLimit = 50
	// MarkupVersion is announced in every article document.
	MarkupVersion = "v1.0"
)

type rssFeed struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	ContentNS string     `xml:"xmlns:content,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string     `xml:"title"`
	Link    string     `xml:"link"`
	GUID    string     `xml:"guid"`
	PubDate string     `xml:"pubDate"`
	Content rssContent `xml:"content:encoded"`
}

type rssContent struct {
	Body string `xml:",cdata"`
}

// Posts lists candidate posts for the feed.
type Posts interface {
	RecentPosts(ctx context.Context, limit int) ([]store.Post, error)
}

// Articles renders a post's instant article.
type Articles interface {
	Get(ctx context.Context, id int64) (article.Result, error)
}

// Generator writes the feed.
type Generator struct {
	SiteURL  string // e.g. "https://example.com"
	Title    string
	Limit    int
	Posts    Posts
	Articles Articles
	Logger   *slog.Logger
	now      func() time.Time
}

// Write renders the feed to w. Posts whose article can not be produced are
// left out of the feed.
func (g *Generator) Write(ctx context.Context, w io.Writer) error {
	limit := g.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	posts, err := g.Posts.RecentPosts(ctx, limit)
	if err != nil {
		return fmt.Errorf("list feed posts: %w", err)
	}

	title := g.Title
	if title == "" {
		title = g.SiteURL
	}
	feed := rssFeed{
		Version:   "2.0",
		ContentNS: "http://purl.org/rss/1.0/modules/content/",
		Channel: rssChannel{
			Title:         title,
			Link:          g.SiteURL,
			Description:   "Instant Articles",
			LastBuildDate: g.clock().UTC().Format(time.RFC1123Z),
		},
	}
	for _, p := range posts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := g.Articles.Get(ctx, p.ID)
		if err != nil {
			g.logger().Warn("feed item skipped", "post", p.ID, "error", err)
			continue
		}
		link := g.PostURL(p.ID)
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:   "Post " + strconv.FormatInt(p.ID, 10),
			Link:    link,
			GUID:    link,
			PubDate: p.Modified.UTC().Format(time.RFC1123Z),
			Content: rssContent{Body: Document(link, res.Body)},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(feed); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return enc.Flush()
}

// PostURL is the canonical URL of a post.
func (g *Generator) PostURL(id int64) string {
	return g.SiteURL + "/?p=" + strconv.FormatInt(id, 10)
}

// Document wraps article markup in the HTML document a feed item carries.
func Document(canonical, body string) string {
	return `<!doctype html><html><head><meta charset="utf-8">` +
		`<link rel="canonical" href="` + html.EscapeString(canonical) + `">` +
		`<meta property="op:markup_version" content="` + MarkupVersion + `">` +
		`</head><body><article>` + body + `</article></body></html>`
}

func (g *Generator) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
