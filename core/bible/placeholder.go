package bible

import (
	"fmt"
	"strings"
)

// PlaceholderPrefix marks a scaffolded verse whose content has not been
// sourced yet. Such a row exists physically but counts as missing.
const PlaceholderPrefix = "[MISSING_VERSE][AUTO]"

// PlaceholderText builds the marker text for a scaffolded verse.
func PlaceholderText(book string, chapter, verse int) string {
	return fmt.Sprintf("%s %s %d:%d", PlaceholderPrefix, book, chapter, verse)
}

// IsPlaceholder reports whether text is a scaffold placeholder.
func IsPlaceholder(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), PlaceholderPrefix)
}

// HasContent reports whether text is real, sourced verse content.
func HasContent(text string) bool {
	return strings.TrimSpace(text) != "" && !IsPlaceholder(text)
}

// GapOptions controls MissingVerses.
type GapOptions struct {
	// Strict counts placeholder and blank rows as missing.
	Strict bool

	// ExpectedMax is the known last verse of the chapter. When zero the
	// highest verse number present is used.
	ExpectedMax int
}

// MissingVerses returns, in ascending order, the verse numbers in 1..max that
// have no row, or (strict mode) whose row holds a placeholder or blank text.
// Heading rows (verse 0) are ignored.
func MissingVerses(verses []Verse, opts GapOptions) []int {
	present := make(map[int]Verse, len(verses))
	highest := 0
	for _, v := range verses {
		if v.VerseNumber <= 0 {
			continue
		}
		present[v.VerseNumber] = v
		if v.VerseNumber > highest {
			highest = v.VerseNumber
		}
	}
	if opts.ExpectedMax > highest {
		highest = opts.ExpectedMax
	}

	var missing []int
	for n := 1; n <= highest; n++ {
		v, ok := present[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		if opts.Strict && !HasContent(v.Text) {
			missing = append(missing, n)
		}
	}
	return missing
}
