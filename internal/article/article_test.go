package article

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpnative/instant-articles/internal/cache"
	"github.com/wpnative/instant-articles/internal/imagecheck"
	"github.com/wpnative/instant-articles/internal/media"
	"github.com/wpnative/instant-articles/internal/render"
	"github.com/wpnative/instant-articles/internal/rules"
	"github.com/wpnative/instant-articles/internal/store"
	"github.com/wpnative/instant-articles/internal/transform"
)

type countingParser struct {
	calls atomic.Int32
	last  transform.Post
	err   error
}

func (p *countingParser) Transform(_ context.Context, post transform.Post) (string, error) {
	p.calls.Add(1)
	p.last = post
	if p.err != nil {
		return "", p.err
	}
	return "<p>" + post.Content + "</p>", nil
}

var betweenTags = regexp.MustCompile(`>\s+<`)

// compact drops the whitespace autop leaves between blocks.
func compact(s string) string { return betweenTags.ReplaceAllString(s, "><") }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newService(t *testing.T, parser Transformer) (*Service, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "ia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Service{
		Posts:  db,
		Media:  db,
		Parser: parser,
		Cache:  cache.NewArticles(cache.NewMemoryStore(), time.Hour, "1.0-1", discard()),
		Logger: discard(),
	}, db
}

func TestGetCachesUntilSave(t *testing.T) {
	ctx := context.Background()
	parser := &countingParser{}
	svc, _ := newService(t, parser)

	_, err := svc.Save(ctx, store.Post{ID: 1, Content: "one"})
	require.NoError(t, err)

	first, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "<p>one</p>", first.Body)

	second, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(1), parser.calls.Load())

	_, err = svc.Save(ctx, store.Post{ID: 1, Content: "two"})
	require.NoError(t, err)
	third, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, "<p>two</p>", third.Body)
}

func TestGetMissingPost(t *testing.T) {
	svc, _ := newService(t, &countingParser{})
	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransformFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	parser := &countingParser{err: context.Canceled}
	svc, _ := newService(t, parser)
	_, err := svc.Save(ctx, store.Post{ID: 2, Content: "x"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)

	parser.err = nil
	res, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestPostFieldsReachTransformer(t *testing.T) {
	ctx := context.Background()
	parser := &countingParser{}
	svc, db := newService(t, parser)
	require.NoError(t, db.SaveAttachment(ctx, media.Attachment{ID: 4, URL: "https://x.test/cover.jpg", Width: 10, Height: 10}))

	no := false
	_, err := svc.Save(ctx, store.Post{ID: 3, Content: "c", Format: "markdown", CoverID: 4, Comments: &no})
	require.NoError(t, err)
	_, err = svc.Get(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, "markdown", parser.last.Format)
	require.NotNil(t, parser.last.Cover)
	assert.Equal(t, "https://x.test/cover.jpg", parser.last.Cover.URL)
	require.NotNil(t, parser.last.Overrides.Comments)
	assert.False(t, *parser.last.Overrides.Comments)
	assert.Nil(t, parser.last.Overrides.Likes)

	// A dangling cover reference is ignored.
	_, err = svc.Save(ctx, store.Post{ID: 5, Content: "c", CoverID: 40})
	require.NoError(t, err)
	_, err = svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, parser.last.Cover)
}

func TestDeleteDropsCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &countingParser{})
	_, err := svc.Save(ctx, store.Post{ID: 6, Content: "x"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, 6)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 6))
	_, err = svc.Get(ctx, 6)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestServiceWithContentParser(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "ia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.AddRule(ctx, rules.Rule{
		Type: rules.TypeCustom, Rule: rules.ActionRemove, Selector: "div.ad",
	})
	require.NoError(t, err)

	parser := transform.NewContentParser(render.New(nil, nil, discard()), db, db, imagecheck.Func(func(context.Context, string) bool { return true }),
		transform.Settings{SiteURL: "https://x.test"}, discard())
	svc := &Service{Posts: db, Media: db, Parser: parser, Logger: discard()}

	_, err = svc.Save(ctx, store.Post{ID: 1, Content: "<h3>Title</h3><div class=\"ad\">buy</div><p>Body</p>"})
	require.NoError(t, err)
	res, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "<h2>Title</h2><p>Body</p>", compact(res.Body))
}
