// Package sanitize turns submitted song bodies (plain text or HTML fragments) into clean plain text
package sanitize

import (
	"regexp"
	"strings"
)

var (
	lineBreakTag   = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag         = regexp.MustCompile(`<[^>]+>`)
	blankLines     = regexp.MustCompile(`\n\s*\n`)
	horizontalWS   = regexp.MustCompile(`[ \t]+`)
	trailingStars  = regexp.MustCompile(`(\*+\s*)+$`)
	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
)

// Clean strips markup from the given text and normalizes its whitespace. Only the five entities &nbsp; &amp; &lt;
// &gt; and &quot; are decoded, so text that decodes into new markup is not guaranteed to be stable under a second
// call. For everything else, cleaning already cleaned text does not change it.
func Clean(raw string) string {
	s := lineBreakTag.ReplaceAllString(raw, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = blankLines.ReplaceAllString(s, "\n\n")
	s = horizontalWS.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trailingStars.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
