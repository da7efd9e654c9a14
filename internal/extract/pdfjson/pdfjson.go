// Package pdfjson loads verse text that an upstream PDF extraction step wrote
// as nested JSON: book name, then chapter, then verse, then
// {"text": ..., "pericope": ...}. The file may wrap that map in a "books"
// object.
package pdfjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/core/textkey"
)

// Entry is one extracted verse.
type Entry struct {
	Text     string  `json:"text"`
	Pericope *string `json:"pericope"`
}

// PericopeText returns the pericope, empty when absent.
func (e Entry) PericopeText() string {
	if e.Pericope == nil {
		return ""
	}
	return strings.TrimSpace(*e.Pericope)
}

type rawBooks map[string]map[string]map[string]Entry

// Extract is a lookup table keyed by normalized book name.
type Extract struct {
	books map[string]map[int]map[int]Entry
	names map[string]string
}

// Stats summarizes an Extract.
type Stats struct {
	Books     int `json:"books"`
	Chapters  int `json:"chapters"`
	Verses    int `json:"verses"`
	WithText  int `json:"verses_with_text"`
	Pericopes int `json:"pericopes"`
}

// ReadFile loads the extract at path.
func ReadFile(path string) (*Extract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	ex, err := Decode(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return ex, nil
}

// Decode reads either {"books": {...}} or the bare book map. Chapter and
// verse keys must be decimal integers.
func Decode(r io.Reader) (*Extract, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading extract")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Message: err.Error(), Err: err}
	}
	if inner, ok := probe["books"]; ok && len(probe) == 1 {
		data = inner
	}

	var raw rawBooks
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Message: err.Error(), Err: err}
	}

	ex := &Extract{
		books: make(map[string]map[int]map[int]Entry, len(raw)),
		names: make(map[string]string, len(raw)),
	}
	for name, chapters := range raw {
		key := textkey.NormalizeBookKey(name)
		if prev, dup := ex.names[key]; dup {
			return nil, errors.NewParse("JSON", "", fmt.Sprintf("books %q and %q normalize to the same key", prev, name))
		}
		ex.names[key] = name

		byChapter := make(map[int]map[int]Entry, len(chapters))
		for chKey, verses := range chapters {
			ch, err := strconv.Atoi(strings.TrimSpace(chKey))
			if err != nil {
				return nil, errors.NewParse("JSON", "", fmt.Sprintf("%s: invalid chapter key %q", name, chKey))
			}
			byVerse := make(map[int]Entry, len(verses))
			for vKey, entry := range verses {
				v, err := strconv.Atoi(strings.TrimSpace(vKey))
				if err != nil {
					return nil, errors.NewParse("JSON", "", fmt.Sprintf("%s %d: invalid verse key %q", name, ch, vKey))
				}
				entry.Text = strings.TrimSpace(entry.Text)
				byVerse[v] = entry
			}
			byChapter[ch] = byVerse
		}
		ex.books[key] = byChapter
	}
	return ex, nil
}

// Lookup returns the entry for a verse. Book names are matched by their
// normalized key.
func (e *Extract) Lookup(book string, chapter, verse int) (Entry, bool) {
	return e.LookupKey(textkey.NormalizeBookKey(book), chapter, verse)
}

// LookupKey is Lookup for an already-normalized book key.
func (e *Extract) LookupKey(bookKey string, chapter, verse int) (Entry, bool) {
	entry, ok := e.books[bookKey][chapter][verse]
	return entry, ok
}

// HasBook reports whether the extract covers book.
func (e *Extract) HasBook(book string) bool {
	_, ok := e.books[textkey.NormalizeBookKey(book)]
	return ok
}

// Books returns the book names as written in the extract, sorted.
func (e *Extract) Books() []string {
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Name returns the book name as written in the extract for a normalized key.
func (e *Extract) Name(bookKey string) string {
	return e.names[bookKey]
}

// Walk calls fn for every extracted verse in book key, chapter and verse
// order.
func (e *Extract) Walk(fn func(bookKey string, chapter, verse int, entry Entry)) {
	keys := make([]string, 0, len(e.books))
	for k := range e.books {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		chapters := e.books[k]
		for _, ch := range sortedKeys(chapters) {
			verses := chapters[ch]
			for _, v := range sortedKeys(verses) {
				fn(k, ch, v, verses[v])
			}
		}
	}
}

func sortedKeys[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Stats counts what the extract holds.
func (e *Extract) Stats() Stats {
	s := Stats{Books: len(e.books)}
	for _, chapters := range e.books {
		s.Chapters += len(chapters)
		for _, verses := range chapters {
			s.Verses += len(verses)
			for _, entry := range verses {
				if entry.Text != "" {
					s.WithText++
				}
				if entry.PericopeText() != "" {
					s.Pericopes++
				}
			}
		}
	}
	return s
}
