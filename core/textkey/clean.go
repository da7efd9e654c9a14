package textkey

import (
	"regexp"
	"strings"
)

var (
	multiSpaceRe   = regexp.MustCompile(`\s+`)
	hyphenBreakRe  = regexp.MustCompile(`(\pL)-\s+(\pL)`)
	spaceBeforeRe  = regexp.MustCompile(`\s+([,.;:!?])`)
	spaceAfterOpen = regexp.MustCompile(`([(\[{])\s+`)
	spaceBeforeEnd = regexp.MustCompile(`\s+([)\]}])`)
)

var glyphReplacer = strings.NewReplacer(
	"\r", "",
	"\u00a0", " ",
	"\u202f", " ",
	"\u2009", " ",
	"\u00ad", "",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2018", "'",
	"\u2019", "'",
	"\u2014", "-",
	"\u2013", "-",
)

// CollapseSpace trims s and folds every whitespace run to one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

// CleanVerseText applies the conservative cleanup used for PDF-derived text:
// typographic glyphs to ASCII, hyphenated line breaks joined, no space before
// closing punctuation, collapsed whitespace. It never merges or splits words
// beyond hyphen breaks.
func CleanVerseText(s string) string {
	s = glyphReplacer.Replace(s)
	s = CollapseSpace(s)
	s = hyphenBreakRe.ReplaceAllString(s, "$1$2")
	s = spaceBeforeRe.ReplaceAllString(s, "$1")
	s = spaceAfterOpen.ReplaceAllString(s, "$1")
	s = spaceBeforeEnd.ReplaceAllString(s, "$1")
	return CollapseSpace(s)
}
