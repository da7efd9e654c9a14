package bible

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/biblesync/core/textkey"
)

// LetteredChapter ties a stored chapter_number to the letter some canons use
// for the Greek additions to Esther.
type LetteredChapter struct {
	Number int
	Label  string
}

// EstherLetterChapters uses the Vulgate numbering of the additions:
// chapters 11-16 carry labels A-F.
var EstherLetterChapters = []LetteredChapter{
	{Number: 11, Label: "A"},
	{Number: 12, Label: "B"},
	{Number: 13, Label: "C"},
	{Number: 14, Label: "D"},
	{Number: 15, Label: "E"},
	{Number: 16, Label: "F"},
}

// EstherSourcePages is how many numbered pages the source splits Esther into.
// Lettered sections are scattered across them.
const EstherSourcePages = 10

// estherKeys are the normalized names Esther goes by across workspaces.
var estherKeys = map[string]bool{
	"esther":        true,
	"ester":         true,
	"ester yunani":  true,
	"esther greek":  true,
	"esther yunani": true,
}

// IsEsther reports whether name refers to the book of Esther.
func IsEsther(name string) bool {
	return estherKeys[textkey.NormalizeBookKey(name)]
}

// LetterForChapter returns the label for a lettered Esther chapter number.
func LetterForChapter(n int) (string, bool) {
	for _, lc := range EstherLetterChapters {
		if lc.Number == n {
			return lc.Label, true
		}
	}
	return "", false
}

// ChapterForLetter returns the stored chapter number for a label (A-F).
func ChapterForLetter(label string) (int, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	for _, lc := range EstherLetterChapters {
		if lc.Label == label {
			return lc.Number, true
		}
	}
	return 0, false
}

// ChapterLabel renders a chapter number for display or source matching:
// the letter for Esther's additions, the decimal number otherwise.
func ChapterLabel(bookName string, n int) string {
	if IsEsther(bookName) {
		if l, ok := LetterForChapter(n); ok {
			return l
		}
	}
	return strconv.Itoa(n)
}
