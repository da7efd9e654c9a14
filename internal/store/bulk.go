package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/biblesync/internal/logging"
)

// Default limits. The backend caps rows per request at 1000, and long IN
// lists or large write payloads are rejected.
const (
	DefaultPageSize         = 1000
	DefaultInChunkSize      = 200
	DefaultWriteChunkSize   = 500
	DefaultWriteConcurrency = 15
)

// Limits bound the size and fan-out of backend calls.
type Limits struct {
	PageSize         int
	InChunkSize      int
	WriteChunkSize   int
	WriteConcurrency int
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		PageSize:         DefaultPageSize,
		InChunkSize:      DefaultInChunkSize,
		WriteChunkSize:   DefaultWriteChunkSize,
		WriteConcurrency: DefaultWriteConcurrency,
	}
}

// withDefaults fills zero fields.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.PageSize <= 0 {
		l.PageSize = d.PageSize
	}
	if l.InChunkSize <= 0 {
		l.InChunkSize = d.InChunkSize
	}
	if l.WriteChunkSize <= 0 {
		l.WriteChunkSize = d.WriteChunkSize
	}
	if l.WriteConcurrency <= 0 {
		l.WriteConcurrency = d.WriteConcurrency
	}
	return l
}

// FetchAll pages through q in stable order until a short page, and returns
// every row. A single unpaged Select would be silently truncated at the
// backend's row cap.
func FetchAll(ctx context.Context, b Backend, q Query, pageSize int) ([]Row, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if q.OrderBy == "" {
		q.OrderBy = "id"
	}

	var all []Row
	for offset := 0; ; offset += pageSize {
		page := q
		page.Offset = offset
		page.Limit = pageSize
		rows, err := b.Select(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < pageSize {
			break
		}
	}
	logging.DebugContext(ctx, "fetched table", "table", q.Table, "rows", len(all))
	return all, nil
}

// Count pages through q reading only ids and returns the number of rows.
func Count(ctx context.Context, b Backend, q Query, pageSize int) (int, error) {
	q.Columns = []string{"id"}
	rows, err := FetchAll(ctx, b, q, pageSize)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// FetchByInChunks selects every row whose column is in values. Values are
// deduplicated and split into chunks; each chunk is fetched with FetchAll,
// one after another.
func FetchByInChunks(ctx context.Context, b Backend, q Query, column string, values []string, lim Limits) ([]Row, error) {
	lim = lim.withDefaults()
	unique := Dedupe(values)
	if len(unique) == 0 {
		return nil, nil
	}

	var all []Row
	for _, chunk := range Chunk(unique, lim.InChunkSize) {
		rows, err := FetchAll(ctx, b, q.With(In(column, chunk)), lim.PageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// Dedupe returns values without duplicates or empty strings, keeping first
// occurrence order.
func Dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// UpsertChunked writes rows in chunks with bounded concurrency. The first
// failing chunk cancels the rest and its error is returned.
func UpsertChunked(ctx context.Context, b Backend, table string, rows []Row, conflictCols []string, lim Limits) error {
	lim = lim.withDefaults()
	chunks := Chunk(rows, lim.WriteChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lim.WriteConcurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err := b.Upsert(gctx, table, chunk, conflictCols); err != nil {
				return fmt.Errorf("upsert chunk %d/%d: %w", i+1, len(chunks), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logging.DebugContext(ctx, "upserted rows", "table", table, "rows", len(rows), "chunks", len(chunks))
	return nil
}

// DeleteChunked deletes rows whose column is in values, chunked like
// UpsertChunked.
func DeleteChunked(ctx context.Context, b Backend, table, column string, values []string, lim Limits) error {
	lim = lim.withDefaults()
	chunks := Chunk(Dedupe(values), lim.WriteChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lim.WriteConcurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err := b.Delete(gctx, table, column, chunk); err != nil {
				return fmt.Errorf("delete chunk %d/%d: %w", i+1, len(chunks), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logging.DebugContext(ctx, "deleted rows", "table", table, "rows", len(values), "chunks", len(chunks))
	return nil
}
