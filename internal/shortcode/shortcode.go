// Package shortcode expands bracket shortcodes such as
// [gallery ids="1,2"] or [caption]inner[/caption] in post content.
package shortcode

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Attrs holds shortcode attributes. Positional values are keyed "0", "1", ...
type Attrs map[string]string

// Handler renders one shortcode occurrence. content is the enclosed text
// for [tag]content[/tag] and empty for self-closing forms.
type Handler func(attrs Attrs, content, tag string) string

// Registry maps shortcode tags to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Add registers h for tag, replacing any previous handler.
func (r *Registry) Add(tag string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tag] = h
}

// Remove unregisters tag.
func (r *Registry) Remove(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, tag)
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[tag]
	return ok
}

// Handler returns the handler registered for tag.
func (r *Registry) Handler(tag string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[tag]
	return h, ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry{handlers: maps.Clone(r.handlers)}
}

// Override installs replacement handlers until restore is called. A nil
// handler in the table unregisters the tag for the scope. Nested overrides
// must be restored in reverse order; restore is safe to call twice.
func (r *Registry) Override(table map[string]Handler) (restore func()) {
	type saved struct {
		h  Handler
		ok bool
	}
	r.mu.Lock()
	prev := make(map[string]saved, len(table))
	for tag, h := range table {
		old, ok := r.handlers[tag]
		prev[tag] = saved{old, ok}
		if h == nil {
			delete(r.handlers, tag)
		} else {
			r.handlers[tag] = h
		}
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for tag, s := range prev {
				if s.ok {
					r.handlers[tag] = s.h
				} else {
					delete(r.handlers, tag)
				}
			}
		})
	}
}

// Do expands every registered shortcode in content. Unknown tags and
// escaped [[tag]] forms are left literal, with one bracket pair removed
// from the escaped form.
func (r *Registry) Do(content string) string {
	if !strings.Contains(content, "[") {
		return content
	}
	r.mu.RLock()
	handlers := maps.Clone(r.handlers)
	r.mu.RUnlock()
	if len(handlers) == 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	i := 0
	for i < len(content) {
		open := strings.IndexByte(content[i:], '[')
		if open < 0 {
			break
		}
		open += i
		m, ok := scan(content, open, handlers)
		if !ok {
			b.WriteString(content[i : open+1])
			i = open + 1
			continue
		}
		b.WriteString(content[i:open])
		if m.escaped {
			b.WriteString(content[m.start+1 : m.end-1])
		} else {
			b.WriteString(handlers[m.tag](m.attrs, m.content, m.tag))
		}
		i = m.end
	}
	b.WriteString(content[i:])
	return b.String()
}

type match struct {
	start, end int
	tag        string
	attrs      Attrs
	content    string
	escaped    bool
}

// scan tries to read a shortcode starting at content[start] == '['.
func scan(content string, start int, handlers map[string]Handler) (match, bool) {
	pos := start + 1
	escaped := false
	if pos < len(content) && content[pos] == '[' {
		escaped = true
		pos++
	}
	nameEnd := pos
	for nameEnd < len(content) && isTagByte(content[nameEnd]) {
		nameEnd++
	}
	tag := content[pos:nameEnd]
	if tag == "" {
		return match{}, false
	}
	if _, ok := handlers[tag]; !ok {
		return match{}, false
	}
	if nameEnd < len(content) && content[nameEnd] != ']' && content[nameEnd] != '/' && !isSpace(content[nameEnd]) {
		return match{}, false
	}
	closeIdx := strings.IndexByte(content[nameEnd:], ']')
	if closeIdx < 0 {
		return match{}, false
	}
	closeIdx += nameEnd
	rawAttrs := content[nameEnd:closeIdx]
	end := closeIdx + 1

	m := match{start: start, tag: tag}
	selfClosing := strings.HasSuffix(strings.TrimSpace(rawAttrs), "/")
	if selfClosing {
		rawAttrs = strings.TrimSuffix(strings.TrimSpace(rawAttrs), "/")
	} else {
		closing := "[/" + tag + "]"
		if idx := strings.Index(content[end:], closing); idx >= 0 {
			m.content = content[end : end+idx]
			end += idx + len(closing)
		}
	}
	if escaped {
		if end >= len(content) || content[end] != ']' {
			return match{}, false
		}
		m.escaped = true
		m.end = end + 1
		return m, true
	}
	m.end = end
	m.attrs = ParseAttrs(rawAttrs)
	return m, true
}

// ParseAttrs parses name="v", name='v', name=v, "v" and bare v forms.
func ParseAttrs(raw string) Attrs {
	attrs := Attrs{}
	pos := 0
	s := strings.TrimSpace(raw)
	for s != "" {
		var name, val string
		eq := strings.IndexByte(s, '=')
		sp := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
		if eq > 0 && (sp < 0 || eq < sp) && s[0] != '"' && s[0] != '\'' {
			name = strings.ToLower(s[:eq])
			val, s = readValue(s[eq+1:])
		} else {
			val, s = readValue(s)
			name = strconv.Itoa(pos)
			pos++
		}
		attrs[name] = val
		s = strings.TrimSpace(s)
	}
	return attrs
}

func readValue(s string) (string, string) {
	if s == "" {
		return "", ""
	}
	if q := s[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(s[1:], q); end >= 0 {
			return s[1 : end+1], s[end+2:]
		}
		return s[1:], ""
	}
	end := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}

func isTagByte(c byte) bool {
	return c == '_' || c == '-' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
