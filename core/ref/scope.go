// Package ref parses run-scope selectors such as "Kejadian", "1 Yohanes 3"
// or "Esther A; Mazmur 119" used to restrict a sync run to part of a workspace.
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/textkey"
)

// scopeGrammar is the participle grammar for a selector list.
//
//nolint:govet // participle grammar tags are not standard struct tags
type scopeGrammar struct {
	Items []*itemGrammar `@@ ( ( ";" | "," ) @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type itemGrammar struct {
	BookPrefix string   `@Int?`
	Words      []string `@Ident+`
	Chapter    string   `@Int?`
}

// scopeLexer tokenizes selectors. Book words may contain hyphens and
// apostrophes ("Hakim-hakim", "Song of Songs").
var scopeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `\p{L}[\p{L}\-']*`},
	{Name: "Punct", Pattern: `[;,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var scopeParser = participle.MustBuild[scopeGrammar](
	participle.Lexer(scopeLexer),
	participle.Elide("Whitespace"),
)

// Selector restricts a run to one book, or one chapter of a book.
type Selector struct {
	// Book is the book name as written.
	Book string `json:"book"`

	// BookKey is textkey.NormalizeBookKey(Book).
	BookKey string `json:"book_key"`

	// Chapter is the stored chapter number; 0 selects the whole book.
	Chapter int `json:"chapter,omitempty"`
}

// String renders the selector back in "Book chapter" form.
func (s Selector) String() string {
	if s.Chapter == 0 {
		return s.Book
	}
	return s.Book + " " + bible.ChapterLabel(s.Book, s.Chapter)
}

// Scope is a set of selectors. The empty Scope selects everything.
type Scope []Selector

// ParseScope parses a selector list. An empty string yields an empty Scope.
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parsed, err := scopeParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid scope %q: %w", s, err)
	}

	scope := make(Scope, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		sel, err := item.selector()
		if err != nil {
			return nil, fmt.Errorf("invalid scope %q: %w", s, err)
		}
		scope = append(scope, sel)
	}
	return scope, nil
}

func (g *itemGrammar) selector() (Selector, error) {
	words := g.Words
	chapter := 0

	if g.Chapter != "" {
		n, err := strconv.Atoi(g.Chapter)
		if err != nil || n <= 0 {
			return Selector{}, fmt.Errorf("bad chapter %q", g.Chapter)
		}
		chapter = n
	} else if len(words) > 1 {
		// "Esther A": a trailing single letter is a lettered chapter.
		last := words[len(words)-1]
		book := strings.Join(words[:len(words)-1], " ")
		if len(last) == 1 && bible.IsEsther(book) {
			n, ok := bible.ChapterForLetter(last)
			if !ok {
				return Selector{}, fmt.Errorf("unknown lettered chapter %q", last)
			}
			chapter = n
			words = words[:len(words)-1]
		}
	}

	book := strings.Join(words, " ")
	if g.BookPrefix != "" {
		book = g.BookPrefix + " " + book
	}
	return Selector{Book: book, BookKey: textkey.NormalizeBookKey(book), Chapter: chapter}, nil
}

// IsEmpty reports whether the scope selects everything.
func (sc Scope) IsEmpty() bool {
	return len(sc) == 0
}

// IncludesBook reports whether any selector names the book.
func (sc Scope) IncludesBook(name string) bool {
	if sc.IsEmpty() {
		return true
	}
	key := textkey.NormalizeBookKey(name)
	for _, s := range sc {
		if s.BookKey == key {
			return true
		}
	}
	return false
}

// IncludesChapter reports whether the chapter of the named book is selected.
func (sc Scope) IncludesChapter(name string, chapter int) bool {
	if sc.IsEmpty() {
		return true
	}
	key := textkey.NormalizeBookKey(name)
	for _, s := range sc {
		if s.BookKey == key && (s.Chapter == 0 || s.Chapter == chapter) {
			return true
		}
	}
	return false
}

// String joins the selectors with "; ".
func (sc Scope) String() string {
	parts := make([]string, len(sc))
	for i, s := range sc {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}
