package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/errors"
)

// Row is one record keyed by column name. Values are strings, integers,
// floats, json.Number, []byte or nil depending on the backend.
type Row map[string]any

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// String returns the column as a string; nil is "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the column as an int; NULL is 0. Values that are present but
// not integral are an error.
func (r Row) Int(col string) (int, error) {
	n, err := r.IntPtr(col)
	if err != nil || n == nil {
		return 0, err
	}
	return *n, nil
}

// ChapterNumber decodes a chapter number column. Esther's lettered additions
// may be stored as their labels and map to 11..16.
func (r Row) ChapterNumber(col string) (int, error) {
	n, err := r.IntPtr(col)
	if err == nil && n != nil {
		return *n, nil
	}
	if ch, ok := bible.ChapterForLetter(r.String(col)); ok {
		return ch, nil
	}
	return 0, errors.NewValidation(col, fmt.Sprintf("chapter number %q is not an integer or an Esther letter", r.String(col)))
}

// IntPtr returns the column as *int, nil for NULL. The error reports values
// that are present but not integral.
func (r Row) IntPtr(col string) (*int, error) {
	var n int
	switch v := r[col].(type) {
	case nil:
		return nil, nil
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("column %s: %v is not an integer", col, v)
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		n = i
	case []byte:
		i, err := strconv.Atoi(string(v))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		n = i
	default:
		return nil, fmt.Errorf("column %s: unsupported type %T", col, v)
	}
	return &n, nil
}

// nullable returns nil for "" so empty strings are stored as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt returns nil for a nil pointer.
func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
