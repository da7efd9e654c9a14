// Package store is the bulk data access layer over the relational verse store.
//
// A Backend speaks to one concrete store (PostgREST or SQL). Helpers in this
// package page through large tables, split IN filters and chunk writes so no
// single call exceeds the backend's row or payload limits. Repository maps
// rows onto the bible model.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/biblesync/core/errors"
)

// Table names.
const (
	TableBooks    = "bible_books"
	TableChapters = "bible_chapters"
	TableVerses   = "bible_verses"
)

// Backend is the read/write contract of the relational store.
type Backend interface {
	// Select returns the rows matching q. Implementations apply Limit and
	// Offset verbatim and may cap Limit further.
	Select(ctx context.Context, q Query) ([]Row, error)

	// Upsert inserts rows, updating the supplied columns when a row collides
	// on conflictCols. All rows of one call must carry the same columns.
	Upsert(ctx context.Context, table string, rows []Row, conflictCols []string) error

	// Delete removes rows whose column value is one of values.
	Delete(ctx context.Context, table, column string, values []string) error

	// Close releases connections.
	Close() error
}

// FilterOp is a filter comparison.
type FilterOp string

// Filter operators.
const (
	OpEq FilterOp = "eq"
	OpIn FilterOp = "in"
)

// Filter restricts a Select to rows where Column matches Values.
type Filter struct {
	Column string
	Op     FilterOp
	Values []string
}

// Eq filters on column = value.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: OpEq, Values: []string{value}}
}

// In filters on column IN (values...).
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Values: values}
}

// Query describes one Select call.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter

	// OrderBy is the stable ascending sort key; FetchAll defaults it to "id".
	OrderBy string

	Offset int
	Limit  int
}

// With returns a copy of q with extra filters appended.
func (q Query) With(filters ...Filter) Query {
	out := q
	out.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return out
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(kind, s string) error {
	if !identPattern.MatchString(s) {
		return errors.NewValidation(kind, fmt.Sprintf("invalid identifier %q", s))
	}
	return nil
}

// Validate checks every identifier in q. Backends interpolate identifiers
// into URLs and SQL, so only [a-z0-9_] names pass.
func (q Query) Validate() error {
	if err := validIdent("table", q.Table); err != nil {
		return err
	}
	for _, c := range q.Columns {
		if err := validIdent("column", c); err != nil {
			return err
		}
	}
	for _, f := range q.Filters {
		if err := validIdent("column", f.Column); err != nil {
			return err
		}
		if f.Op != OpEq && f.Op != OpIn {
			return errors.NewValidation("filter", fmt.Sprintf("unsupported operator %q", f.Op))
		}
		if f.Op == OpEq && len(f.Values) != 1 {
			return errors.NewValidation("filter", fmt.Sprintf("eq on %s needs exactly one value", f.Column))
		}
	}
	if q.OrderBy != "" {
		if err := validIdent("order", q.OrderBy); err != nil {
			return err
		}
	}
	if q.Offset < 0 || q.Limit < 0 {
		return errors.NewValidation("page", "offset and limit must be non-negative")
	}
	return nil
}

// rowColumns returns the shared, sorted column set of rows, or an error when
// rows disagree on their columns.
func rowColumns(table string, rows []Row) ([]string, error) {
	if err := validIdent("table", table); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	cols := rows[0].Columns()
	for _, c := range cols {
		if err := validIdent("column", c); err != nil {
			return nil, err
		}
	}
	want := strings.Join(cols, ",")
	for i, r := range rows[1:] {
		if got := strings.Join(r.Columns(), ","); got != want {
			return nil, errors.NewValidation("rows", fmt.Sprintf("row %d of %s has columns [%s], want [%s]", i+1, table, got, want))
		}
	}
	return cols, nil
}
