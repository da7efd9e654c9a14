package reconcile

import (
	"sort"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/internal/store"
)

// Patch is new content for one existing verse. Nil fields keep the stored
// value; a pointer to "" clears it.
type Patch struct {
	Text     *string
	Pericope *string

	// Skip leaves the verse out of every count.
	Skip bool
}

// PatchFunc returns the patch for one stored verse, or false when the
// overlay has nothing for it.
type PatchFunc func(book bible.Book, chapter bible.Chapter, verse bible.Verse) (Patch, bool)

// OverlayPlan is the result of PlanOverlay.
type OverlayPlan struct {
	// Updates are full rows whose stored content changes.
	Updates []bible.Verse

	// Unchanged counts matched verses that already hold the patched content.
	Unchanged int

	// Missing are stored verses the overlay had nothing for. They are kept.
	Missing []VerseRef
}

// PlanOverlay patches the verses of one workspace in place without touching
// its structure. Verses are visited in book, chapter and verse order.
func PlanOverlay(snap *store.Snapshot, patch PatchFunc) *OverlayPlan {
	chaptersByBook := make(map[string][]bible.Chapter)
	for _, c := range snap.Chapters {
		chaptersByBook[c.BookID] = append(chaptersByBook[c.BookID], c)
	}
	versesByChapter := make(map[string][]bible.Verse)
	for _, v := range snap.Verses {
		versesByChapter[v.ChapterID] = append(versesByChapter[v.ChapterID], v)
	}

	plan := &OverlayPlan{}
	for _, b := range snap.Books {
		chapters := chaptersByBook[b.ID]
		sort.Slice(chapters, func(i, j int) bool { return chapters[i].ChapterNumber < chapters[j].ChapterNumber })
		for _, c := range chapters {
			verses := versesByChapter[c.ID]
			sort.Slice(verses, func(i, j int) bool { return verses[i].VerseNumber < verses[j].VerseNumber })
			for _, v := range verses {
				p, ok := patch(b, c, v)
				if !ok {
					plan.Missing = append(plan.Missing, VerseRef{Book: b.Name, Chapter: c.ChapterNumber, Verse: v.VerseNumber})
					continue
				}
				if p.Skip {
					continue
				}

				want := v
				if p.Text != nil {
					want.Text = *p.Text
				}
				if p.Pericope != nil {
					want.Pericope = *p.Pericope
				}
				want = want.WithLegacy(b.LegacyBookID, c.ChapterNumber)
				if v.SameContent(want) {
					plan.Unchanged++
					continue
				}
				plan.Updates = append(plan.Updates, want)
			}
		}
	}
	return plan
}
