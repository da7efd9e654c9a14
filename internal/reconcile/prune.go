package reconcile

import "github.com/FocuswithJustin/biblesync/core/bible"

// PrunePlan lists stale target rows. Apply deletes verses, then chapters,
// then books.
type PrunePlan struct {
	Verses   []bible.Verse
	Chapters []bible.Chapter
	Books    []bible.Book
}

// PlanPrune finds target rows outside the expected image of the source.
// Verses and chapters of paired books are always pruned. Extra books are
// deleted together with their chapters and verses unless keepExtraBooks is
// set, in which case they are left alone entirely.
func PlanPrune(books *BookPlan, chapters *ChapterPlan, verses *VersePlan, target []bible.Chapter, targetVerses []bible.Verse, keepExtraBooks bool) *PrunePlan {
	plan := &PrunePlan{}

	managedBooks := make(map[string]bool)
	for _, bp := range books.Pairs {
		managedBooks[bp.Target.ID] = true
	}
	if !keepExtraBooks {
		for _, b := range books.Extra {
			managedBooks[b.ID] = true
			plan.Books = append(plan.Books, b)
		}
	}

	staleChapter := make(map[string]bool)
	for _, c := range chapters.Extra {
		staleChapter[c.ID] = true
	}
	managedChapter := make(map[string]bool)
	for _, c := range target {
		if !managedBooks[c.BookID] {
			continue
		}
		managedChapter[c.ID] = true
		if !keepExtraBooks && !staleChapter[c.ID] && isExtra(books.Extra, c.BookID) {
			staleChapter[c.ID] = true
		}
		if staleChapter[c.ID] {
			plan.Chapters = append(plan.Chapters, c)
		}
	}

	for _, v := range targetVerses {
		if managedChapter[v.ChapterID] && !verses.Expected[v.Slot()] {
			plan.Verses = append(plan.Verses, v)
		}
	}
	return plan
}

func isExtra(extra []bible.Book, id string) bool {
	for _, b := range extra {
		if b.ID == id {
			return true
		}
	}
	return false
}

// VerseIDs returns the ids of the stale verses.
func (p *PrunePlan) VerseIDs() []string {
	ids := make([]string, 0, len(p.Verses))
	for _, v := range p.Verses {
		ids = append(ids, v.ID)
	}
	return ids
}

// ChapterIDs returns the ids of the stale chapters.
func (p *PrunePlan) ChapterIDs() []string {
	ids := make([]string, 0, len(p.Chapters))
	for _, c := range p.Chapters {
		ids = append(ids, c.ID)
	}
	return ids
}

// BookIDs returns the ids of the stale books.
func (p *PrunePlan) BookIDs() []string {
	ids := make([]string, 0, len(p.Books))
	for _, b := range p.Books {
		ids = append(ids, b.ID)
	}
	return ids
}
