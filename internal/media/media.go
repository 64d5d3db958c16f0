// Package media describes post attachments and their resized renditions.
package media

import (
	"context"
	"errors"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ErrNotFound is returned when no attachment matches a lookup.
var ErrNotFound = errors.New("attachment not found")

// Rendition is one stored size of an attachment.
type Rendition struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Attachment is an uploaded image and its renditions. The original upload is
// the attachment's own URL and size.
type Attachment struct {
	ID         int64       `json:"id"`
	URL        string      `json:"url"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Renditions []Rendition `json:"renditions,omitempty"`
}

// Largest returns the rendition with the greatest area, the original
// included. Ties go to the original.
func (a Attachment) Largest() Rendition {
	best := Rendition{Name: "full", URL: a.URL, Width: a.Width, Height: a.Height}
	for _, r := range a.Renditions {
		if r.Width*r.Height > best.Width*best.Height {
			best = r
		}
	}
	return best
}

// Has reports whether u is the original or one of the renditions.
func (a Attachment) Has(u string) bool {
	if SameURL(a.URL, u) {
		return true
	}
	for _, r := range a.Renditions {
		if SameURL(r.URL, u) {
			return true
		}
	}
	return false
}

// Library resolves attachments for a post's images.
type Library interface {
	Attachment(ctx context.Context, id int64) (Attachment, error)
	AttachmentByURL(ctx context.Context, rawURL string) (Attachment, error)
}

var (
	imageClassID = regexp.MustCompile(`(?:^|\s)wp-image-(\d+)(?:\s|$)`)
	sizeSuffix   = regexp.MustCompile(`-\d+x\d+$`)
)

// IDFromClass extracts the attachment ID embedded in an image's class
// attribute as wp-image-ID.
func IDFromClass(class string) (int64, bool) {
	m := imageClassID.FindStringSubmatch(class)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

// Stem returns the file name of u without its extension and without a
// trailing -WIDTHxHEIGHT resize suffix, plus the extension.
func Stem(u string) (stem, ext string) {
	p := u
	if parsed, err := url.Parse(u); err == nil {
		p = parsed.Path
	}
	base := path.Base(p)
	ext = path.Ext(base)
	stem = sizeSuffix.ReplaceAllString(strings.TrimSuffix(base, ext), "")
	return stem, ext
}

// SameURL compares two image URLs ignoring scheme and query string.
func SameURL(a, b string) bool {
	return NormaliseURL(a) == NormaliseURL(b)
}

// NormaliseURL reduces an image URL to lower-case host and path, the form
// SameURL compares.
func NormaliseURL(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return u
	}
	return strings.ToLower(parsed.Host) + parsed.Path
}

// Resolve finds the attachment behind an image, first by the ID in its
// class attribute, then by reverse URL lookup.
func Resolve(ctx context.Context, lib Library, class, src string) (Attachment, bool) {
	if lib == nil {
		return Attachment{}, false
	}
	if id, ok := IDFromClass(class); ok {
		if a, err := lib.Attachment(ctx, id); err == nil {
			return a, true
		}
	}
	if src == "" {
		return Attachment{}, false
	}
	a, err := lib.AttachmentByURL(ctx, src)
	return a, err == nil
}

// Static is an in-memory Library.
type Static struct {
	mu    sync.RWMutex
	items map[int64]Attachment
}

// NewStatic returns a library holding the given attachments.
func NewStatic(items ...Attachment) *Static {
	s := &Static{items: make(map[int64]Attachment, len(items))}
	for _, a := range items {
		s.items[a.ID] = a
	}
	return s
}

// Put adds or replaces an attachment.
func (s *Static) Put(a Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = a
}

// Attachment implements Library.
func (s *Static) Attachment(_ context.Context, id int64) (Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	return a, nil
}

// AttachmentByURL implements Library.
func (s *Static) AttachmentByURL(_ context.Context, rawURL string) (Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.items {
		if a.Has(rawURL) {
			return a, nil
		}
	}
	return Attachment{}, ErrNotFound
}
