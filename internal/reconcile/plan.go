package reconcile

import (
	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/internal/store"
)

// Input is everything Build needs.
type Input struct {
	Source *store.Snapshot
	Target *store.Snapshot

	// Legacy mints legacy_book_id values for created books. Seed it with
	// bible.NewLegacyIDAllocator over every book in the table. When nil, it
	// is seeded from the two snapshots only.
	Legacy *bible.Sequence

	Verses VerseOptions

	// KeepExtraBooks keeps target books with no source counterpart together
	// with their whole subtree. Their chapters and verses are not pruned,
	// even the ones that would be stale under a paired book.
	KeepExtraBooks bool

	// NewID mints ids for created rows. UUIDs() when nil.
	NewID IDFunc
}

// Plan is a complete reconciliation of Source onto Target.
type Plan struct {
	Source   bible.Workspace
	Target   bible.Workspace
	Books    *BookPlan
	Chapters *ChapterPlan
	Verses   *VersePlan
	Prune    *PrunePlan
}

// Build plans books, chapters, verses and pruning in that order.
func Build(in Input) (*Plan, error) {
	newID := in.NewID
	if newID == nil {
		newID = UUIDs()
	}
	legacy := in.Legacy
	if legacy == nil {
		books := append(append([]bible.Book(nil), in.Source.Books...), in.Target.Books...)
		legacy = bible.NewLegacyIDAllocator(books)
	}

	books, err := PairBooks(in.Source.Books, in.Target.Books, in.Target.Workspace, legacy, newID)
	if err != nil {
		return nil, err
	}
	chapters := PlanChapters(books, in.Source.Chapters, in.Target.Chapters, newID)
	verses := PlanVerses(chapters, in.Source.Verses, in.Target.Verses, in.Verses)
	prune := PlanPrune(books, chapters, verses, in.Target.Chapters, in.Target.Verses, in.KeepExtraBooks)

	return &Plan{
		Source:   in.Source.Workspace,
		Target:   in.Target.Workspace,
		Books:    books,
		Chapters: chapters,
		Verses:   verses,
		Prune:    prune,
	}, nil
}

// Summary is the integer view of a plan written to reports.
type Summary struct {
	BooksSource      int `json:"books_source"`
	BooksCreated     int `json:"created_books"`
	BooksUpdated     int `json:"updated_books"`
	BooksExtra       int `json:"extra_books"`
	ChaptersCreated  int `json:"created_chapters"`
	UpdatesPrepared  int `json:"updates_prepared"`
	VersesUnresolved int `json:"unresolved_verses"`
	VersesDeleted    int `json:"deleted_verses"`
	ChaptersDeleted  int `json:"deleted_chapters"`
	BooksDeleted     int `json:"deleted_books"`
	VerseStats
}

// Summary counts the plan.
func (p *Plan) Summary() Summary {
	return Summary{
		BooksSource:      len(p.Books.Pairs),
		BooksCreated:     len(p.Books.Creates),
		BooksUpdated:     len(p.Books.Updates),
		BooksExtra:       len(p.Books.Extra),
		ChaptersCreated:  len(p.Chapters.Creates),
		UpdatesPrepared:  len(p.Verses.Upserts),
		VersesUnresolved: len(p.Verses.Unresolved),
		VersesDeleted:    len(p.Prune.Verses),
		ChaptersDeleted:  len(p.Prune.Chapters),
		BooksDeleted:     len(p.Prune.Books),
		VerseStats:       p.Verses.Stats,
	}
}

// IsEmpty reports whether applying the plan would write nothing.
func (p *Plan) IsEmpty() bool {
	s := p.Summary()
	return s.BooksCreated+s.BooksUpdated+s.ChaptersCreated+s.UpdatesPrepared+
		s.VersesDeleted+s.ChaptersDeleted+s.BooksDeleted == 0
}
