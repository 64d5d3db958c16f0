package render

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const blockTags = `table|thead|tfoot|caption|col|colgroup|tbody|tr|td|th|div|dl|dd|dt|ul|ol|li|pre|form|map|area|blockquote|address|math|style|p|h[1-6]|hr|fieldset|legend|section|article|aside|hgroup|header|footer|nav|figure|figcaption|details|menu|summary|iframe|video|audio|object|embed|script|noscript`

// containerTags may hold paragraphs of their own.
const containerTags = `blockquote|div|li|td|th|section|article|aside|details`

var (
	texturizeToken = regexp.MustCompile(`<[^>]*>|\[[^\]]*\]`)
	noTexturize    = []string{"pre", "code", "kbd", "style", "script", "tt", "textarea"}
	tagName        = regexp.MustCompile(`^</?([A-Za-z][A-Za-z0-9]*)`)

	preBlock        = regexp.MustCompile(`(?is)<pre[\s>].*?</pre>`)
	blockOpen       = regexp.MustCompile(`(?i)(<(?:` + blockTags + `)[\s/>])`)
	blockClose      = regexp.MustCompile(`(?i)(</(?:` + blockTags + `)>)`)
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
	startsWithBlock = regexp.MustCompile(`(?i)^</?(?:` + blockTags + `)[\s/>]`)
	leadContainer   = regexp.MustCompile(`(?i)^((?:<(?:` + containerTags + `)(?:\s[^>]*)?>\s*)+)`)
	trailClosing    = regexp.MustCompile(`(?i)((?:\s*</(?:` + blockTags + `)>)+)$`)

	unautopPattern = regexp.MustCompile(`(?s)<p>\s*(\[([A-Za-z0-9_-]+)[^\]]*\](?:.*?\[/[A-Za-z0-9_-]+\])?)\s*</p>`)
)

// Texturize converts straight quotes, dashes and ellipses in text to their
// typographic entities. Markup, shortcodes and the content of pre, code,
// script and similar elements are left untouched.
func Texturize(content string) string {
	if content == "" {
		return content
	}
	var b strings.Builder
	b.Grow(len(content) + len(content)/8)
	var skip []string
	last := 0
	for _, loc := range texturizeToken.FindAllStringIndex(content, -1) {
		text := content[last:loc[0]]
		if len(skip) == 0 {
			text = texturizeText(text)
		}
		b.WriteString(text)
		token := content[loc[0]:loc[1]]
		trackSkip(&skip, token)
		b.WriteString(token)
		last = loc[1]
	}
	tail := content[last:]
	if len(skip) == 0 {
		tail = texturizeText(tail)
	}
	b.WriteString(tail)
	return b.String()
}

func trackSkip(skip *[]string, token string) {
	if token[0] != '<' {
		return
	}
	m := tagName.FindStringSubmatch(token)
	if m == nil {
		return
	}
	name := strings.ToLower(m[1])
	if !slices.Contains(noTexturize, name) {
		return
	}
	switch {
	case strings.HasPrefix(token, "</"):
		if n := len(*skip); n > 0 && (*skip)[n-1] == name {
			*skip = (*skip)[:n-1]
		}
	case !strings.HasSuffix(token, "/>"):
		*skip = append(*skip, name)
	}
}

var dashes = strings.NewReplacer(
	"---", "&#8212;",
	" -- ", " &#8212; ",
	"--", "&#8211;",
	"...", "&#8230;",
)

func texturizeText(s string) string {
	if s == "" {
		return s
	}
	s = dashes.Replace(s)
	if !strings.ContainsAny(s, `"'`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	prev := ' '
	for _, r := range s {
		switch r {
		case '"':
			if opensQuote(prev) {
				b.WriteString("&#8220;")
			} else {
				b.WriteString("&#8221;")
			}
		case '\'':
			if opensQuote(prev) {
				b.WriteString("&#8216;")
			} else {
				b.WriteString("&#8217;")
			}
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

func opensQuote(prev rune) bool {
	switch prev {
	case ' ', '\t', '\n', '\r', '(', '[', '{', '-', ';':
		return true
	}
	return false
}

// Autop wraps double-line-break separated text in paragraphs and turns
// remaining single line breaks into <br /> elements. Block-level markup is
// left as its own block.
func Autop(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var pres []string
	content = preBlock.ReplaceAllStringFunc(content, func(m string) string {
		pres = append(pres, m)
		return fmt.Sprintf("\x00pre%d\x00", len(pres)-1)
	})

	content = blockOpen.ReplaceAllString(content, "\n\n$1")
	content = blockClose.ReplaceAllString(content, "$1\n\n")

	var out []string
	for _, chunk := range paragraphBreak.Split(content, -1) {
		chunk = strings.Trim(chunk, "\n")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		out = append(out, autopChunk(chunk))
	}
	result := strings.Join(out, "\n")
	for i, pre := range pres {
		marker := fmt.Sprintf("\x00pre%d\x00", i)
		result = strings.Replace(result, "<p>"+marker+"</p>", pre, 1)
		result = strings.Replace(result, marker, pre, 1)
	}
	return result + "\n"
}

func autopChunk(chunk string) string {
	trimmed := strings.TrimSpace(chunk)
	if strings.HasPrefix(trimmed, "\x00pre") {
		return trimmed
	}
	lead := ""
	if m := leadContainer.FindString(trimmed); m != "" {
		lead = m
		trimmed = trimmed[len(m):]
	}
	trail := ""
	if m := trailClosing.FindString(trimmed); m != "" {
		trail = strings.TrimSpace(m)
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-len(m)])
	}
	if trimmed == "" || startsWithBlock.MatchString(trimmed) {
		return lead + trimmed + trail
	}
	body := strings.ReplaceAll(trimmed, "\n", "<br />\n")
	return lead + "<p>" + body + "</p>" + trail
}

// unautop removes paragraphs that wrap nothing but a registered shortcode,
// so block output produced by the shortcode does not end up inside a <p>.
func unautop(content string, tags []string) string {
	if len(tags) == 0 || !strings.Contains(content, "<p>") {
		return content
	}
	return unautopPattern.ReplaceAllStringFunc(content, func(m string) string {
		sub := unautopPattern.FindStringSubmatch(m)
		if !slices.Contains(tags, sub[2]) {
			return m
		}
		return sub[1]
	})
}
