package matcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// Product names arrive with inconsistent spacing, fullwidth characters and
// qualifier prefixes like "(일반/간편)" or "(무)". Comparison happens on a
// folded form; the original name is always preserved for display.

var (
	bracketPattern    = regexp.MustCompile(`[\(（][^\)）]*[\)）]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// normalizeName folds a product name or query fragment for comparison:
// fullwidth→halfwidth, lowercase, no whitespace.
func normalizeName(s string) string {
	s = width.Fold.String(s)
	s = strings.ToLower(s)
	return whitespacePattern.ReplaceAllString(s, "")
}

// stripQualifiers removes bracketed qualifier segments that carry no
// discriminating signal ("(일반/간편)", "(무)", sales-channel tags).
func stripQualifiers(s string) string {
	return bracketPattern.ReplaceAllString(s, "")
}

// nameKeywords are the whitespace-separated tokens of the lowercased original
// name, used for exact keyword-membership scoring.
func nameKeywords(name string) []string {
	return strings.Fields(strings.ToLower(name))
}
