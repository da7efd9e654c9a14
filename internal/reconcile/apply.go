package reconcile

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/biblesync/internal/logging"
	"github.com/FocuswithJustin/biblesync/internal/store"
)

// Apply writes a plan: create books, update books, create chapters, upsert
// verses, then delete stale verses, chapters and books. The first failing
// step aborts the run; every step is idempotent, so a rerun picks up where
// this one stopped.
func Apply(ctx context.Context, repo *store.Repository, p *Plan) error {
	steps := []struct {
		name string
		n    int
		run  func() error
	}{
		{"create_books", len(p.Books.Creates), func() error { return repo.UpsertBooks(ctx, p.Books.Creates) }},
		{"update_books", len(p.Books.Updates), func() error { return repo.UpsertBooks(ctx, p.Books.Updates) }},
		{"create_chapters", len(p.Chapters.Creates), func() error { return repo.UpsertChapters(ctx, p.Chapters.Creates) }},
		{"upsert_verses", len(p.Verses.Upserts), func() error { return repo.UpsertVerses(ctx, p.Verses.Upserts) }},
		{"delete_verses", len(p.Prune.Verses), func() error { return repo.DeleteVerses(ctx, p.Prune.VerseIDs()) }},
		{"delete_chapters", len(p.Prune.Chapters), func() error { return repo.DeleteChapters(ctx, p.Prune.ChapterIDs()) }},
		{"delete_books", len(p.Prune.Books), func() error { return repo.DeleteBooks(ctx, p.Prune.BookIDs()) }},
	}

	for _, s := range steps {
		if s.n == 0 {
			continue
		}
		logging.StageEvent(ctx, s.name, "rows", s.n, "target", p.Target.String())
		if err := s.run(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
