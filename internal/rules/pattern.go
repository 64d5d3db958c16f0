package rules

import (
	"log/slog"
	"regexp"
	"strings"
)

// Wildcard marks the single capture point in a pattern template.
const Wildcard = "{{content}}"

// Compile turns a search template into a regular expression. Everything but
// the wildcard is matched literally; the wildcard captures the shortest run
// of any characters, newlines included.
func Compile(search string) (*regexp.Regexp, error) {
	prefix, suffix, found := strings.Cut(search, Wildcard)
	if !found {
		return regexp.Compile(regexp.QuoteMeta(search))
	}
	return regexp.Compile(`(?s)` + regexp.QuoteMeta(prefix) + `(.*?)` + regexp.QuoteMeta(suffix))
}

// Expand converts a replacement template to regexp expansion syntax: a
// literal "$" is escaped and the wildcard refers to the captured text.
func Expand(replace string) string {
	replace = strings.ReplaceAll(replace, "$", "$$")
	return strings.ReplaceAll(replace, Wildcard, "${1}")
}

// Pattern is one compiled search/replace pair.
type Pattern struct {
	RuleID  int64
	Regexp  *regexp.Regexp
	Replace string
}

// Apply runs the substitution over content.
func (p Pattern) Apply(content string) string {
	return p.Regexp.ReplaceAllString(content, p.Replace)
}

// PatternFor compiles a single rule's search/replace pair.
func PatternFor(r Rule) (Pattern, error) {
	re, err := Compile(r.MetaValue(MetaSearchFor))
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{RuleID: r.ID, Regexp: re, Replace: Expand(r.MetaValue(MetaReplaceWith))}, nil
}

// Batch is the ordered set of whole-document pattern rules for one run.
type Batch struct {
	patterns     []*regexp.Regexp
	replacements []string
	ids          []int64
}

// BuildBatch compiles the given pattern rules in order. A rule whose
// template fails to compile still contributes its replacement, which leaves
// the batch misaligned; Apply then refuses to run it.
func BuildBatch(rules []Rule, logger *slog.Logger) Batch {
	if logger == nil {
		logger = slog.Default()
	}
	var b Batch
	for _, r := range rules {
		b.replacements = append(b.replacements, Expand(r.MetaValue(MetaReplaceWith)))
		b.ids = append(b.ids, r.ID)
		re, err := Compile(r.MetaValue(MetaSearchFor))
		if err != nil {
			logger.Warn("pattern rule does not compile", "rule", r.ID, "error", err)
			continue
		}
		b.patterns = append(b.patterns, re)
	}
	return b
}

// Len returns the number of compiled patterns.
func (b Batch) Len() int { return len(b.patterns) }

// Aligned reports whether every replacement has a compiled pattern.
func (b Batch) Aligned() bool { return len(b.patterns) == len(b.replacements) }

// Apply runs every pattern over content in rule order. A misaligned batch
// is skipped entirely and reported as a configuration defect.
func (b Batch) Apply(content string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if !b.Aligned() {
		logger.Error("pattern rule batch is misaligned; skipping all pattern rules",
			"patterns", len(b.patterns), "replacements", len(b.replacements), "rules", b.ids)
		return content
	}
	for i, re := range b.patterns {
		content = re.ReplaceAllString(content, b.replacements[i])
	}
	return content
}
