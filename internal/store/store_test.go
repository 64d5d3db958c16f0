package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpnative/instant-articles/internal/cache"
	"github.com/wpnative/instant-articles/internal/media"
	"github.com/wpnative/instant-articles/internal/rules"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Post(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	yes := true
	saved, err := db.SavePost(ctx, Post{ID: 1, Content: "<p>x</p>", Format: "html", CoverID: 4, Likes: &yes})
	require.NoError(t, err)
	assert.False(t, saved.Modified.IsZero())

	got, err := db.Post(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", got.Content)
	assert.Equal(t, int64(4), got.CoverID)
	require.NotNil(t, got.Likes)
	assert.True(t, *got.Likes)
	assert.Nil(t, got.Comments)
	assert.Equal(t, saved.Modified, got.Modified)

	_, err = db.SavePost(ctx, Post{ID: 1, Content: "<p>y</p>"})
	require.NoError(t, err)
	_, err = db.SavePost(ctx, Post{ID: 3})
	require.NoError(t, err)
	got, err = db.Post(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "<p>y</p>", got.Content)
	assert.Nil(t, got.Likes)

	ids, err := db.PostIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	require.NoError(t, db.DeletePost(ctx, 3))
	assert.ErrorIs(t, db.DeletePost(ctx, 3), ErrNotFound)

	_, err = db.SavePost(ctx, Post{ID: 0})
	assert.Error(t, err)
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	a := media.Attachment{
		ID: 7, URL: "https://x.test/up/photo.jpg", Width: 2000, Height: 1500,
		Renditions: []media.Rendition{
			{Name: "medium", URL: "https://x.test/up/photo-300x225.jpg", Width: 300, Height: 225},
			{Name: "thumbnail", URL: "https://x.test/up/photo-150x150.jpg", Width: 150, Height: 150},
		},
	}
	require.NoError(t, db.SaveAttachment(ctx, a))

	got, err := db.Attachment(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, a.URL, got.URL)
	assert.Len(t, got.Renditions, 2)
	assert.Equal(t, "thumbnail", got.Renditions[0].Name)
	assert.Equal(t, a.URL, got.Largest().URL)

	byURL, err := db.AttachmentByURL(ctx, "http://X.test/up/photo-300x225.jpg?ver=3")
	require.NoError(t, err)
	assert.Equal(t, int64(7), byURL.ID)

	_, err = db.AttachmentByURL(ctx, "https://x.test/up/other.jpg")
	assert.ErrorIs(t, err, media.ErrNotFound)
	_, err = db.Attachment(ctx, 8)
	assert.ErrorIs(t, err, media.ErrNotFound)

	a.Renditions = a.Renditions[:1]
	require.NoError(t, db.SaveAttachment(ctx, a))
	got, err = db.Attachment(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, got.Renditions, 1)

	id, ok := media.Resolve(ctx, db, "wp-image-7", "")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id.ID)
}

func TestRules(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	r, err := db.AddRule(ctx, rules.Rule{Type: rules.TypeCustom, Rule: "remove", Selector: " div.ad "})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Equal(t, rules.StatusActive, r.Status)
	assert.Equal(t, "div.ad", r.Selector)

	_, err = db.AddRule(ctx, rules.Rule{Type: rules.TypeCustom, Rule: "carousel", Selector: "div"})
	assert.ErrorIs(t, err, rules.ErrInvalidRule)
	assert.ErrorIs(t, err, rules.ErrUnknownKind)

	_, err = db.AddRule(ctx, rules.Rule{Type: rules.TypeShortcode, Rule: "remove", Selector: "old", Status: rules.StatusInactive})
	require.NoError(t, err)
	_, err = db.AddRule(ctx, rules.Rule{
		Type: rules.TypePostContent, Rule: rules.ActionPatternMatcher,
		Meta: map[string]string{rules.MetaSearchFor: "<b>{{content}}</b>", rules.MetaReplaceWith: "<strong>{{content}}</strong>"},
	})
	require.NoError(t, err)

	all, err := db.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	set, err := rules.Load(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Len(t, set.PostContentPatterns(), 1)
	assert.Equal(t, "<b>{{content}}</b>", set.PostContentPatterns()[0].MetaValue(rules.MetaSearchFor))

	require.NoError(t, db.DeleteRule(ctx, r.ID))
	assert.ErrorIs(t, db.DeleteRule(ctx, r.ID), ErrNotFound)
}

func TestActiveRulesPaging(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	set := make([]rules.Rule, rules.PageSize+5)
	for i := range set {
		set[i] = rules.Rule{Type: rules.TypeCustom, Rule: "remove", Selector: "div.r"}
	}
	require.NoError(t, db.ReplaceRules(ctx, set))

	page, err := db.ActiveRules(ctx, 0, rules.PageSize)
	require.NoError(t, err)
	assert.Len(t, page, rules.PageSize)
	page, err = db.ActiveRules(ctx, rules.PageSize, rules.PageSize)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	loaded, err := rules.Load(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, rules.PageSize+5, loaded.Len())

	err = db.ReplaceRules(ctx, []rules.Rule{{Type: rules.TypeCustom, Rule: "remove"}})
	assert.ErrorIs(t, err, rules.ErrInvalidRule)
	all, err := db.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, rules.PageSize+5, "a rejected import must keep the old rules")
}

func TestTransients(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tr := db.Transients()
	now := time.Unix(10_000, 0)
	tr.now = func() time.Time { return now }

	var _ cache.Store = tr
	var _ cache.Purger = tr

	require.NoError(t, tr.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, tr.Set(ctx, "forever", "f", 0))
	v, ok, err := tr.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok, err = tr.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tr.Set(ctx, "short", "s", time.Second))
	now = now.Add(time.Minute)
	n, err := tr.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = tr.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tr.Delete(ctx, "forever"))
	require.NoError(t, tr.Purge(ctx))
	_, ok, _ = tr.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestTransientsBackArticleCache(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	articles := cache.NewArticles(db.Transients(), time.Hour, "1.0", nil)

	ticket := articles.Begin(9)
	require.True(t, articles.Put(ctx, ticket, "<p>cached</p>"))
	body, ok := articles.Get(ctx, 9)
	require.True(t, ok)
	assert.Equal(t, "<p>cached</p>", body)

	require.NoError(t, articles.Invalidate(ctx, 9))
	_, ok = articles.Get(ctx, 9)
	assert.False(t, ok)
}

func TestRecentPosts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	for id := int64(1); id <= 3; id++ {
		_, err := db.SavePost(ctx, Post{ID: id, Content: "x"})
		require.NoError(t, err)
	}

	recent, err := db.RecentPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].ID)
	assert.Equal(t, int64(2), recent[1].ID)
}
