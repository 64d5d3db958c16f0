// Package article serves instant article markup for stored posts, caching
// each transformation until the post changes.
package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wpnative/instant-articles/internal/cache"
	"github.com/wpnative/instant-articles/internal/media"
	"github.com/wpnative/instant-articles/internal/store"
	"github.com/wpnative/instant-articles/internal/transform"
)

// Posts is the post storage the service reads and writes.
type Posts interface {
	Post(ctx context.Context, id int64) (store.Post, error)
	SavePost(ctx context.Context, p store.Post) (store.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// Transformer turns one post into instant article markup.
type Transformer interface {
	Transform(ctx context.Context, post transform.Post) (string, error)
}

// Result is a served article body.
type Result struct {
	PostID int64
	Body   string
	Cached bool
}

type Service struct {
	Posts  Posts
	Media  media.Library
	Parser Transformer
	// Cache may be nil, in which case every request transforms.
	Cache  *cache.Articles
	Logger *slog.Logger
}

// Get returns the article for a post, from the cache when a current entry
// exists. A missing post yields an error wrapping store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Result, error) {
	if s.Cache != nil {
		if body, ok := s.Cache.Get(ctx, id); ok {
			return Result{PostID: id, Body: body, Cached: true}, nil
		}
	}

	var ticket cache.Ticket
	if s.Cache != nil {
		ticket = s.Cache.Begin(id)
	}
	p, err := s.Posts.Post(ctx, id)
	if err != nil {
		return Result{}, err
	}
	body, err := s.transform(ctx, p)
	if err != nil {
		return Result{}, err
	}
	if s.Cache != nil && !s.Cache.Put(ctx, ticket, body) {
		s.logger().Debug("discarded stale transform", "post", id)
	}
	return Result{PostID: id, Body: body}, nil
}

// Preview transforms a post without touching storage or the cache.
func (s *Service) Preview(ctx context.Context, p store.Post) (string, error) {
	return s.transform(ctx, p)
}

// Save stores a post and drops its cached article.
func (s *Service) Save(ctx context.Context, p store.Post) (store.Post, error) {
	saved, err := s.Posts.SavePost(ctx, p)
	if err != nil {
		return saved, err
	}
	if err := s.Invalidate(ctx, saved.ID); err != nil {
		return saved, err
	}
	return saved, nil
}

// Delete removes a post and its cached article.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.Posts.DeletePost(ctx, id); err != nil {
		return err
	}
	return s.Invalidate(ctx, id)
}

// Invalidate drops the cached article for a post.
func (s *Service) Invalidate(ctx context.Context, id int64) error {
	if s.Cache == nil {
		return nil
	}
	if err := s.Cache.Invalidate(ctx, id); err != nil {
		return fmt.Errorf("invalidate post %d: %w", id, err)
	}
	return nil
}

func (s *Service) transform(ctx context.Context, p store.Post) (string, error) {
	post := transform.Post{
		ID:      p.ID,
		Content: p.Content,
		Format:  p.Format,
		Overrides: transform.Overrides{
			Likes:    p.Likes,
			Comments: p.Comments,
		},
	}
	if p.CoverID > 0 && s.Media != nil {
		cover, err := s.Media.Attachment(ctx, p.CoverID)
		switch {
		case err == nil:
			post.Cover = &cover
		case errors.Is(err, media.ErrNotFound):
			s.logger().Warn("cover image not found", "post", p.ID, "attachment", p.CoverID)
		default:
			return "", fmt.Errorf("load cover for post %d: %w", p.ID, err)
		}
	}
	body, err := s.Parser.Transform(ctx, post)
	if err != nil {
		return "", fmt.Errorf("transform post %d: %w", p.ID, err)
	}
	return body, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
