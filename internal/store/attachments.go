package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wpnative/instant-articles/internal/media"
)

// SaveAttachment inserts or replaces an attachment and its renditions.
func (d *DB) SaveAttachment(ctx context.Context, a media.Attachment) error {
	if a.ID <= 0 {
		return fmt.Errorf("save attachment: invalid id %d", a.ID)
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO attachments (id, url, norm, width, height) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.URL, media.NormaliseURL(a.URL), a.Width, a.Height); err != nil {
		return fmt.Errorf("save attachment %d: %w", a.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM renditions WHERE attachment_id = ?`, a.ID); err != nil {
		return fmt.Errorf("clear renditions of %d: %w", a.ID, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO renditions (attachment_id, name, url, norm, width, height) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare rendition insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range a.Renditions {
		if _, err := stmt.ExecContext(ctx, a.ID, r.Name, r.URL, media.NormaliseURL(r.URL), r.Width, r.Height); err != nil {
			return fmt.Errorf("save rendition %s of %d: %w", r.Name, a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attachment %d: %w", a.ID, err)
	}
	return nil
}

// Attachment implements media.Library.
func (d *DB) Attachment(ctx context.Context, id int64) (media.Attachment, error) {
	var a media.Attachment
	err := d.db.QueryRowContext(ctx, `SELECT id, url, width, height FROM attachments WHERE id = ?`, id).
		Scan(&a.ID, &a.URL, &a.Width, &a.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("attachment %d: %w", id, media.ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("load attachment %d: %w", id, err)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT name, url, width, height FROM renditions WHERE attachment_id = ? ORDER BY width * height, name`, id)
	if err != nil {
		return a, fmt.Errorf("load renditions of %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r media.Rendition
		if err := rows.Scan(&r.Name, &r.URL, &r.Width, &r.Height); err != nil {
			return a, fmt.Errorf("scan rendition: %w", err)
		}
		a.Renditions = append(a.Renditions, r)
	}
	return a, rows.Err()
}

// AttachmentByURL implements media.Library. The URL may be the original or
// any rendition; scheme and query string are ignored.
func (d *DB) AttachmentByURL(ctx context.Context, rawURL string) (media.Attachment, error) {
	norm := media.NormaliseURL(rawURL)
	var id int64
	err := d.db.QueryRowContext(ctx, `
SELECT id FROM attachments WHERE norm = ?
UNION ALL
SELECT attachment_id FROM renditions WHERE norm = ?
LIMIT 1`, norm, norm).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return media.Attachment{}, fmt.Errorf("attachment for %s: %w", rawURL, media.ErrNotFound)
	}
	if err != nil {
		return media.Attachment{}, fmt.Errorf("look up %s: %w", rawURL, err)
	}
	return d.Attachment(ctx, id)
}
