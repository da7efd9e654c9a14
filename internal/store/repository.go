package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/FocuswithJustin/biblesync/core/bible"
)

// Column sets read by the repository.
var (
	bookColumns    = []string{"id", "language_code", "version_code", "name", "abbreviation", "grouping", "order_index", "legacy_book_id"}
	chapterColumns = []string{"id", "book_id", "chapter_number"}
	verseColumns   = []string{"id", "chapter_id", "verse_number", "text", "pericope", "book_id", "chapter", "content", "type"}
)

// Conflict keys.
var (
	BookConflict    = []string{"id"}
	ChapterConflict = []string{"book_id", "chapter_number"}
	VerseConflict   = []string{"chapter_id", "verse_number"}
)

// Repository reads and writes bible rows through a Backend.
type Repository struct {
	backend Backend
	limits  Limits
}

// NewRepository returns a Repository using lim for every bulk call.
func NewRepository(b Backend, lim Limits) *Repository {
	return &Repository{backend: b, limits: lim.withDefaults()}
}

// Backend returns the underlying backend.
func (r *Repository) Backend() Backend {
	return r.backend
}

// Limits returns the effective limits.
func (r *Repository) Limits() Limits {
	return r.limits
}

// ListBooks returns the books of one workspace ordered by order_index.
func (r *Repository) ListBooks(ctx context.Context, ws bible.Workspace) ([]bible.Book, error) {
	q := Query{
		Table:   TableBooks,
		Columns: bookColumns,
		Filters: []Filter{Eq("language_code", ws.Language), Eq("version_code", ws.Version)},
	}
	rows, err := FetchAll(ctx, r.backend, q, r.limits.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list books of %s: %w", ws, err)
	}
	books, err := decodeBooks(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool { return books[i].OrderIndex < books[j].OrderIndex })
	return books, nil
}

// ListAllBooks returns every book of every workspace.
func (r *Repository) ListAllBooks(ctx context.Context) ([]bible.Book, error) {
	rows, err := FetchAll(ctx, r.backend, Query{Table: TableBooks, Columns: bookColumns}, r.limits.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return decodeBooks(rows)
}

// ListChapters returns the chapters of the given books.
func (r *Repository) ListChapters(ctx context.Context, bookIDs []string) ([]bible.Chapter, error) {
	rows, err := FetchByInChunks(ctx, r.backend, Query{Table: TableChapters, Columns: chapterColumns}, "book_id", bookIDs, r.limits)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	out := make([]bible.Chapter, 0, len(rows))
	for _, row := range rows {
		n, err := row.ChapterNumber("chapter_number")
		if err != nil {
			return nil, fmt.Errorf("list chapters: chapter %s: %w", row.String("id"), err)
		}
		out = append(out, bible.Chapter{
			ID:            row.String("id"),
			BookID:        row.String("book_id"),
			ChapterNumber: n,
		})
	}
	return out, nil
}

// ListVerses returns the verses of the given chapters.
func (r *Repository) ListVerses(ctx context.Context, chapterIDs []string) ([]bible.Verse, error) {
	rows, err := FetchByInChunks(ctx, r.backend, Query{Table: TableVerses, Columns: verseColumns}, "chapter_id", chapterIDs, r.limits)
	if err != nil {
		return nil, fmt.Errorf("list verses: %w", err)
	}
	out := make([]bible.Verse, 0, len(rows))
	for _, row := range rows {
		legacy, err := row.IntPtr("book_id")
		if err != nil {
			return nil, err
		}
		chapter, err := row.IntPtr("chapter")
		if err != nil {
			return nil, err
		}
		number, err := row.Int("verse_number")
		if err != nil {
			return nil, err
		}
		out = append(out, bible.Verse{
			ID:           row.String("id"),
			ChapterID:    row.String("chapter_id"),
			VerseNumber:  number,
			Text:         row.String("text"),
			Pericope:     row.String("pericope"),
			LegacyBookID: legacy,
			Chapter:      chapter,
			Content:      row.String("content"),
			Type:         bible.VerseType(row.String("type")),
		})
	}
	return out, nil
}

// UpsertBooks writes books keyed by id. Every book must carry an id.
func (r *Repository) UpsertBooks(ctx context.Context, books []bible.Book) error {
	rows := make([]Row, 0, len(books))
	for _, b := range books {
		if b.ID == "" {
			return fmt.Errorf("upsert book %q: missing id", b.Name)
		}
		rows = append(rows, BookRow(b))
	}
	return UpsertChunked(ctx, r.backend, TableBooks, rows, BookConflict, r.limits)
}

// UpsertChapters writes chapters keyed by (book_id, chapter_number).
func (r *Repository) UpsertChapters(ctx context.Context, chapters []bible.Chapter) error {
	rows := make([]Row, 0, len(chapters))
	for _, c := range chapters {
		rows = append(rows, ChapterRow(c))
	}
	return UpsertChunked(ctx, r.backend, TableChapters, rows, ChapterConflict, r.limits)
}

// UpsertVerses writes full verse rows keyed by (chapter_id, verse_number).
// Verse ids are left to the store.
func (r *Repository) UpsertVerses(ctx context.Context, verses []bible.Verse) error {
	rows := make([]Row, 0, len(verses))
	for _, v := range verses {
		rows = append(rows, VerseRow(v))
	}
	return UpsertChunked(ctx, r.backend, TableVerses, rows, VerseConflict, r.limits)
}

// DeleteVerses deletes verses by id.
func (r *Repository) DeleteVerses(ctx context.Context, ids []string) error {
	return DeleteChunked(ctx, r.backend, TableVerses, "id", ids, r.limits)
}

// DeleteChapters deletes chapters by id.
func (r *Repository) DeleteChapters(ctx context.Context, ids []string) error {
	return DeleteChunked(ctx, r.backend, TableChapters, "id", ids, r.limits)
}

// DeleteBooks deletes books by id.
func (r *Repository) DeleteBooks(ctx context.Context, ids []string) error {
	return DeleteChunked(ctx, r.backend, TableBooks, "id", ids, r.limits)
}

// Snapshot is the full book/chapter/verse graph of one workspace.
type Snapshot struct {
	Workspace bible.Workspace
	Books     []bible.Book
	Chapters  []bible.Chapter
	Verses    []bible.Verse
}

// LoadWorkspace fetches every book, chapter and verse of ws.
func (r *Repository) LoadWorkspace(ctx context.Context, ws bible.Workspace) (*Snapshot, error) {
	books, err := r.ListBooks(ctx, ws)
	if err != nil {
		return nil, err
	}
	bookIDs := make([]string, len(books))
	for i, b := range books {
		bookIDs[i] = b.ID
	}
	chapters, err := r.ListChapters(ctx, bookIDs)
	if err != nil {
		return nil, err
	}
	chapterIDs := make([]string, len(chapters))
	for i, c := range chapters {
		chapterIDs[i] = c.ID
	}
	verses, err := r.ListVerses(ctx, chapterIDs)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Workspace: ws, Books: books, Chapters: chapters, Verses: verses}, nil
}

// Counts is the size of one workspace.
type Counts struct {
	Books    int `json:"books"`
	Chapters int `json:"chapters"`
	Verses   int `json:"verses"`
}

// Counts returns the size of ws, reading ids only.
func (r *Repository) Counts(ctx context.Context, ws bible.Workspace) (Counts, error) {
	idOnly := []string{"id"}
	books, err := FetchAll(ctx, r.backend, Query{
		Table:   TableBooks,
		Columns: idOnly,
		Filters: []Filter{Eq("language_code", ws.Language), Eq("version_code", ws.Version)},
	}, r.limits.PageSize)
	if err != nil {
		return Counts{}, fmt.Errorf("count books of %s: %w", ws, err)
	}
	chapters, err := FetchByInChunks(ctx, r.backend, Query{Table: TableChapters, Columns: idOnly}, "book_id", rowIDs(books), r.limits)
	if err != nil {
		return Counts{}, fmt.Errorf("count chapters of %s: %w", ws, err)
	}
	c := Counts{Books: len(books), Chapters: len(chapters)}
	for _, chunk := range Chunk(Dedupe(rowIDs(chapters)), r.limits.InChunkSize) {
		n, err := Count(ctx, r.backend, Query{Table: TableVerses}.With(In("chapter_id", chunk)), r.limits.PageSize)
		if err != nil {
			return Counts{}, fmt.Errorf("count verses of %s: %w", ws, err)
		}
		c.Verses += n
	}
	return c, nil
}

func rowIDs(rows []Row) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.String("id")
	}
	return out
}

// Counts returns the snapshot's size.
func (s *Snapshot) Counts() Counts {
	return Counts{Books: len(s.Books), Chapters: len(s.Chapters), Verses: len(s.Verses)}
}

// BookRow encodes a book for writing.
func BookRow(b bible.Book) Row {
	return Row{
		"id":             b.ID,
		"language_code":  b.LanguageCode,
		"version_code":   b.VersionCode,
		"name":           b.Name,
		"abbreviation":   nullable(b.Abbreviation),
		"grouping":       nullable(string(b.Grouping)),
		"order_index":    b.OrderIndex,
		"legacy_book_id": nullableInt(b.LegacyBookID),
	}
}

// ChapterRow encodes a chapter for writing.
func ChapterRow(c bible.Chapter) Row {
	return Row{
		"id":             c.ID,
		"book_id":        c.BookID,
		"chapter_number": c.ChapterNumber,
	}
}

// VerseRow encodes a full verse row, id excluded. An empty pericope is
// written as NULL so stale headings are cleared.
func VerseRow(v bible.Verse) Row {
	return Row{
		"chapter_id":   v.ChapterID,
		"verse_number": v.VerseNumber,
		"text":         v.Text,
		"pericope":     nullable(v.Pericope),
		"book_id":      nullableInt(v.LegacyBookID),
		"chapter":      nullableInt(v.Chapter),
		"content":      nullable(v.Content),
		"type":         nullable(string(v.Type)),
	}
}

func decodeBooks(rows []Row) ([]bible.Book, error) {
	out := make([]bible.Book, 0, len(rows))
	for _, row := range rows {
		legacy, err := row.IntPtr("legacy_book_id")
		if err != nil {
			return nil, err
		}
		order, err := row.Int("order_index")
		if err != nil {
			return nil, err
		}
		out = append(out, bible.Book{
			ID:           row.String("id"),
			LanguageCode: row.String("language_code"),
			VersionCode:  row.String("version_code"),
			Name:         row.String("name"),
			Abbreviation: row.String("abbreviation"),
			Grouping:     bible.Grouping(row.String("grouping")),
			OrderIndex:   order,
			LegacyBookID: legacy,
		})
	}
	return out, nil
}
