package reconcile

import (
	"sort"

	"github.com/FocuswithJustin/biblesync/core/bible"
)

// ChapterPair links a source chapter to its target chapter and the books
// both belong to.
type ChapterPair struct {
	SourceBook bible.Book
	TargetBook bible.Book
	Source     bible.Chapter
	Target     bible.Chapter
}

// ChapterPlan is the result of PlanChapters.
type ChapterPlan struct {
	// Pairs holds one entry per source chapter of a paired book.
	Pairs []ChapterPair

	// Creates are target chapters that do not exist yet.
	Creates []bible.Chapter

	// Extra are target chapters of paired books with no source counterpart.
	Extra []bible.Chapter
}

// PlanChapters maps every source chapter onto the target book paired with
// its book, creating the target chapter when no chapter with that number
// exists. Chapters of target books outside books.Pairs are not considered.
func PlanChapters(books *BookPlan, source, target []bible.Chapter, newID IDFunc) *ChapterPlan {
	bySourceBook := make(map[string][]bible.Chapter)
	for _, c := range source {
		bySourceBook[c.BookID] = append(bySourceBook[c.BookID], c)
	}
	targetBySlot := make(map[bible.ChapterSlot]bible.Chapter, len(target))
	for _, c := range target {
		targetBySlot[c.Slot()] = c
	}

	plan := &ChapterPlan{}
	expected := make(map[bible.ChapterSlot]bool)
	pairedTargets := make(map[string]bool, len(books.Pairs))
	for _, bp := range books.Pairs {
		pairedTargets[bp.Target.ID] = true

		chapters := bySourceBook[bp.Source.ID]
		sort.Slice(chapters, func(i, j int) bool { return chapters[i].ChapterNumber < chapters[j].ChapterNumber })
		for _, sc := range chapters {
			slot := bible.ChapterSlot{BookID: bp.Target.ID, ChapterNumber: sc.ChapterNumber}
			if expected[slot] {
				continue
			}
			expected[slot] = true

			tc, ok := targetBySlot[slot]
			if !ok {
				tc = bible.Chapter{ID: newID("chapter"), BookID: bp.Target.ID, ChapterNumber: sc.ChapterNumber}
				plan.Creates = append(plan.Creates, tc)
			}
			plan.Pairs = append(plan.Pairs, ChapterPair{
				SourceBook: bp.Source,
				TargetBook: bp.Target,
				Source:     sc,
				Target:     tc,
			})
		}
	}

	for _, c := range target {
		if pairedTargets[c.BookID] && !expected[c.Slot()] {
			plan.Extra = append(plan.Extra, c)
		}
	}
	return plan
}
