// Package embed turns third-party URLs standing alone on a line into their
// embed markup, oEmbed style.
package embed

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Provider renders embed markup for URLs matching Pattern.
type Provider struct {
	Name    string
	Pattern *regexp.Regexp
	Render  func(rawURL string) string
}

// Registry holds the known providers in match order.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	wrap      []func(name, out string) string
}

// NewRegistry returns a registry with the given providers.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Default returns a registry with the built-in providers.
func Default() *Registry {
	return NewRegistry(YouTube(), Vimeo(), Twitter(), Instagram())
}

// Add appends a provider. Earlier providers win on overlapping patterns.
func (r *Registry) Add(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Names lists the provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.Name
	}
	return out
}

// Clone returns an independent copy with no interceptors installed.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry{providers: slices.Clone(r.providers)}
}

// Intercept routes every rendered embed through wrap until restore is
// called. Interceptors stack; the most recent one sees the output first.
func (r *Registry) Intercept(wrap func(name, out string) string) (restore func()) {
	r.mu.Lock()
	r.wrap = append(r.wrap, wrap)
	idx := len(r.wrap) - 1
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if idx < len(r.wrap) {
				r.wrap = r.wrap[:idx]
			}
		})
	}
}

// Render returns the embed markup for rawURL, or false when no provider
// matches.
func (r *Registry) Render(rawURL string) (string, bool) {
	r.mu.RLock()
	providers := r.providers
	wraps := slices.Clone(r.wrap)
	r.mu.RUnlock()

	for _, p := range providers {
		if !p.Pattern.MatchString(rawURL) {
			continue
		}
		out := p.Render(rawURL)
		for i := len(wraps) - 1; i >= 0; i-- {
			out = wraps[i](p.Name, out)
		}
		return out, true
	}
	return "", false
}

// Autoembed replaces every line that consists only of an embeddable URL,
// optionally wrapped in a paragraph, with the provider's markup.
func (r *Registry) Autoembed(content string) string {
	if !strings.Contains(content, "http") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		candidate := strings.TrimSpace(line)
		inParagraph := strings.HasPrefix(candidate, "<p>") && strings.HasSuffix(candidate, "</p>")
		if inParagraph {
			candidate = strings.TrimSpace(candidate[3 : len(candidate)-4])
		}
		if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
			continue
		}
		if strings.ContainsAny(candidate, " \t<>\"") {
			continue
		}
		if out, ok := r.Render(candidate); ok {
			lines[i] = out
		}
	}
	return strings.Join(lines, "\n")
}

// YouTube embeds watch, short and youtu.be links.
func YouTube() Provider {
	re := regexp.MustCompile(`^https?://(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/)|youtu\.be/)([A-Za-z0-9_-]{6,})`)
	return Provider{
		Name:    "youtube",
		Pattern: re,
		Render: func(rawURL string) string {
			id := re.FindStringSubmatch(rawURL)[1]
			return iframe("https://www.youtube.com/embed/"+id, 560, 315)
		},
	}
}

// Vimeo embeds vimeo.com/ID links.
func Vimeo() Provider {
	re := regexp.MustCompile(`^https?://(?:www\.)?vimeo\.com/(?:video/)?(\d+)`)
	return Provider{
		Name:    "vimeo",
		Pattern: re,
		Render: func(rawURL string) string {
			id := re.FindStringSubmatch(rawURL)[1]
			return iframe("https://player.vimeo.com/video/"+id, 640, 360)
		},
	}
}

// Twitter embeds status links as a blockquote plus the widget script.
func Twitter() Provider {
	re := regexp.MustCompile(`^https?://(?:www\.|mobile\.)?(?:twitter|x)\.com/\w{1,15}/status(?:es)?/\d+`)
	return Provider{
		Name:    "twitter",
		Pattern: re,
		Render: func(rawURL string) string {
			u := html.EscapeString(rawURL)
			return fmt.Sprintf(`<blockquote class="twitter-tweet"><a href="%s">%s</a></blockquote><script async src="https://platform.twitter.com/widgets.js"></script>`, u, u)
		},
	}
}

// Instagram embeds post and reel links.
func Instagram() Provider {
	re := regexp.MustCompile(`^https?://(?:www\.)?instagr(?:\.am|am\.com)/(?:p|reel)/[A-Za-z0-9_-]+/?`)
	return Provider{
		Name:    "instagram",
		Pattern: re,
		Render: func(rawURL string) string {
			u, err := url.Parse(rawURL)
			if err == nil {
				u.RawQuery = ""
				rawURL = u.String()
			}
			permalink := html.EscapeString(rawURL)
			return fmt.Sprintf(`<blockquote class="instagram-media" data-instgrm-permalink="%s"><a href="%s">%s</a></blockquote><script async src="https://www.instagram.com/embed.js"></script>`, permalink, permalink, permalink)
		},
	}
}

func iframe(src string, width, height int) string {
	return fmt.Sprintf(`<iframe width="%d" height="%d" src="%s" frameborder="0" allowfullscreen></iframe>`, width, height, html.EscapeString(src))
}
