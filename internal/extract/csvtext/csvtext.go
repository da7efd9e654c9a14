// Package csvtext reads verse tables exported as CSV. Columns are located by
// header name, so exports with extra or reordered columns load unchanged.
package csvtext

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/core/textkey"
)

// Column aliases accepted in the header row, canonical name first.
var columnAliases = map[string][]string{
	"book_name":   {"book_name", "book", "kitab"},
	"chapter":     {"chapter", "chapter_number", "pasal"},
	"verse":       {"verse", "verse_number", "ayat"},
	"text":        {"text", "content", "teks"},
	"pericope":    {"pericope", "heading", "perikop"},
	"grouping":    {"grouping"},
	"order_index": {"order_index"},
}

var requiredColumns = []string{"book_name", "chapter", "verse", "text"}

// Row is one verse of the table.
type Row struct {
	Line       int    `json:"line"`
	Book       string `json:"book_name"`
	Chapter    int    `json:"chapter"`
	Verse      int    `json:"verse"`
	Text       string `json:"text"`
	Pericope   string `json:"pericope,omitempty"`
	Grouping   string `json:"grouping,omitempty"`
	OrderIndex int    `json:"order_index,omitempty"`
}

// Key returns the row's normalized verse key.
func (r Row) Key() string {
	return textkey.VerseKey(r.Book, r.Chapter, r.Verse)
}

// RowError is a data row that could not be read.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Duplicate records a key seen more than once. The row on Line replaced the
// one on Previous.
type Duplicate struct {
	Key      string `json:"key"`
	Line     int    `json:"line"`
	Previous int    `json:"previous_line"`
}

// Options control parsing.
type Options struct {
	// Clean runs textkey.CleanVerseText over text and pericope.
	Clean bool
}

// Table is a parsed CSV keyed by verse.
type Table struct {
	rows  map[string]Row
	order []string

	// DataRows counts data rows read, including bad and duplicate ones.
	DataRows int

	Duplicates []Duplicate
	Errors     []RowError
}

// Len returns the number of distinct verse keys.
func (t *Table) Len() int {
	return len(t.rows)
}

// Lookup finds a row by book name, chapter and verse.
func (t *Table) Lookup(book string, chapter, verse int) (Row, bool) {
	r, ok := t.rows[textkey.VerseKey(book, chapter, verse)]
	return r, ok
}

// LookupKey finds a row by a key built with textkey.VerseKey.
func (t *Table) LookupKey(key string) (Row, bool) {
	r, ok := t.rows[key]
	return r, ok
}

// Keys returns every verse key in first-seen order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// ReadFile parses the CSV file at path.
func ReadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	t, err := Parse(f, opts)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return t, nil
}

// Parse reads a header row followed by data rows. Quoted fields may contain
// commas, doubled quotes and line breaks; CRLF and LF endings are both
// accepted. A missing required column is an error. Rows with unreadable
// numbers or an empty book are recorded in Errors and skipped. A repeated
// verse key replaces the earlier row and is recorded in Duplicates.
func Parse(r io.Reader, opts Options) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewParse("CSV", "", "empty file")
	}
	if err != nil {
		return nil, &errors.ParseError{Format: "CSV", Line: 1, Message: err.Error(), Err: err}
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	t := &Table{rows: make(map[string]Row)}
	lines := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &errors.ParseError{Format: "CSV", Line: pe.StartLine, Message: pe.Err.Error(), Err: err}
			}
			return nil, errors.Wrap(err, "reading CSV")
		}
		if isBlank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		t.DataRows++

		row, msg := decodeRow(record, cols, opts)
		row.Line = line
		if msg != "" {
			t.Errors = append(t.Errors, RowError{Line: line, Message: msg})
			continue
		}

		key := row.Key()
		if prev, seen := lines[key]; seen {
			t.Duplicates = append(t.Duplicates, Duplicate{Key: key, Line: line, Previous: prev})
		} else {
			t.order = append(t.order, key)
		}
		lines[key] = line
		t.rows[key] = row
	}
	return t, nil
}

func mapHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	cols := make(map[string]int)
	for name, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				cols[name] = i
				break
			}
		}
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &errors.ParseError{
			Format:  "CSV",
			Line:    1,
			Message: fmt.Sprintf("missing required column(s): %s", strings.Join(missing, ", ")),
		}
	}
	return cols, nil
}

func decodeRow(record []string, cols map[string]int, opts Options) (Row, string) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := Row{
		Book:     field("book_name"),
		Text:     field("text"),
		Pericope: field("pericope"),
		Grouping: field("grouping"),
	}
	if row.Book == "" {
		return row, "empty book_name"
	}
	ch, err := strconv.Atoi(field("chapter"))
	if err != nil || ch <= 0 {
		return row, fmt.Sprintf("invalid chapter %q", field("chapter"))
	}
	v, err := strconv.Atoi(field("verse"))
	if err != nil || v < 0 {
		return row, fmt.Sprintf("invalid verse %q", field("verse"))
	}
	row.Chapter, row.Verse = ch, v
	if s := field("order_index"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			row.OrderIndex = n
		}
	}

	if opts.Clean {
		row.Text = textkey.CleanVerseText(row.Text)
		row.Pericope = textkey.CleanVerseText(row.Pericope)
	}
	return row, ""
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
