// Package textkey canonicalizes book names and builds the join keys used to
// match rows across workspaces, CSV files and extracted sources.
//
// Every key produced here is idempotent: applying the same function to its own
// output returns the output unchanged.
package textkey

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins the parts of a verse or chapter key.
const KeySeparator = "::"

// zeroWidth lists the invisible code points that survive copy/paste from PDFs
// and web pages.
var zeroWidth = runes.Predicate(func(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return true
	}
	return false
})

// fold decomposes s (NFKD) and drops combining marks and zero-width runes.
// A new transformer is built per call; transform chains are not safe for
// concurrent use.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(zeroWidth))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeBookKey returns the canonical comparison key for a book name:
// diacritics and zero-width characters stripped, lowercased, non-alphanumeric
// runs collapsed to a single space, trimmed.
//
//	NormalizeBookKey("  YOHANES ")      == "yohanes"
//	NormalizeBookKey("Hakim-hakim")     == "hakim hakim"
//	NormalizeBookKey("Ésther (Yunani)") == "esther yunani"
func NormalizeBookKey(name string) string {
	s := fold(name)
	s = strings.ToLower(s)
	// Lowercasing can reintroduce decomposable runes (e.g. U+0130).
	s = fold(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// SlugifyBookName builds the URL path segment for a book: lowercase ASCII
// letters and digits only. "1 Samuel" -> "1samuel", "Song of Songs" -> "songofsongs".
func SlugifyBookName(name string) string {
	s := strings.ToLower(fold(name))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ChapterKey returns "normalized-book::chapter".
func ChapterKey(book string, chapter int) string {
	return NormalizeBookKey(book) + KeySeparator + strconv.Itoa(chapter)
}

// VerseKey returns "normalized-book::chapter::verse", the row key shared by the
// CSV extractor and the database side of every merge.
func VerseKey(book string, chapter, verse int) string {
	return ChapterKey(book, chapter) + KeySeparator + strconv.Itoa(verse)
}

// VerseKeyFromNormalized is VerseKey for a book key that is already normalized.
func VerseKeyFromNormalized(bookKey string, chapter, verse int) string {
	return bookKey + KeySeparator + strconv.Itoa(chapter) + KeySeparator + strconv.Itoa(verse)
}
