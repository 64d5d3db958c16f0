package transform

import "regexp"

var lowHeadingTag = regexp.MustCompile(`(?i)<(/?)h[3-6]([\s>/])`)

// downgradeHeadings rewrites h3 to h6 tags as h2; the format only knows two
// heading levels in the article body.
func downgradeHeadings(content string) string {
	return lowHeadingTag.ReplaceAllString(content, "<${1}h2${2}")
}
