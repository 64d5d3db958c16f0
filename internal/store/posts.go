package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Post is a stored post.
type Post struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	Format  string `json:"format,omitempty"`
	// CoverID is the featured image attachment, 0 for none.
	CoverID  int64     `json:"cover_id,omitempty"`
	Likes    *bool     `json:"likes,omitempty"`
	Comments *bool     `json:"comments,omitempty"`
	Modified time.Time `json:"modified"`
}

// SavePost inserts or replaces a post and stamps its modification time.
func (d *DB) SavePost(ctx context.Context, p Post) (Post, error) {
	if p.ID <= 0 {
		return p, fmt.Errorf("save post: invalid id %d", p.ID)
	}
	p.Modified = time.Now().UTC().Truncate(time.Millisecond)
	_, err := d.db.ExecContext(ctx, `
INSERT INTO posts (id, content, format, cover_id, likes, comments, modified)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	content = excluded.content,
	format = excluded.format,
	cover_id = excluded.cover_id,
	likes = excluded.likes,
	comments = excluded.comments,
	modified = excluded.modified`,
		p.ID, p.Content, p.Format, p.CoverID, nullBool(p.Likes), nullBool(p.Comments), p.Modified.UnixMilli())
	if err != nil {
		return p, fmt.Errorf("save post %d: %w", p.ID, err)
	}
	return p, nil
}

// Post loads one post.
func (d *DB) Post(ctx context.Context, id int64) (Post, error) {
	var (
		p        Post
		likes    sql.NullBool
		comments sql.NullBool
		modified int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, content, format, cover_id, likes, comments, modified FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.Content, &p.Format, &p.CoverID, &likes, &comments, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("load post %d: %w", id, err)
	}
	p.Likes = boolPtr(likes)
	p.Comments = boolPtr(comments)
	p.Modified = time.UnixMilli(modified).UTC()
	return p, nil
}

// PostIDs lists every post ID in ascending order.
func (d *DB) PostIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecentPosts returns up to limit posts, most recently modified first.
func (d *DB) RecentPosts(ctx context.Context, limit int) ([]Post, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT id, content, format, cover_id, likes, comments, modified
FROM posts ORDER BY modified DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}
	defer rows.Close()
	var out []Post
	for rows.Next() {
		var (
			p        Post
			likes    sql.NullBool
			comments sql.NullBool
			modified int64
		)
		if err := rows.Scan(&p.ID, &p.Content, &p.Format, &p.CoverID, &likes, &comments, &modified); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Likes = boolPtr(likes)
		p.Comments = boolPtr(comments)
		p.Modified = time.UnixMilli(modified).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePost removes a post.
func (d *DB) DeletePost(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return nil
}
