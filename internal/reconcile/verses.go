package reconcile

import (
	"sort"

	"github.com/FocuswithJustin/biblesync/core/bible"
)

// VerseOptions control PlanVerses.
type VerseOptions struct {
	Mode    Mode
	Policy  Policy
	Overlay Overlay
}

// VerseStats counts how each expected verse was produced.
type VerseStats struct {
	Expected     int `json:"expected_verses"`
	Headings     int `json:"heading_rows"`
	Placeholders int `json:"placeholders"`
	FromExtract  int `json:"text_from_extract"`
	FromFallback int `json:"text_from_fallback"`
	FromExisting int `json:"text_from_existing"`
	Pericopes    int `json:"pericopes"`
	Unchanged    int `json:"verses_unchanged"`
}

// VersePlan is the result of PlanVerses.
type VersePlan struct {
	// Upserts are full target rows that differ from what is stored.
	Upserts []bible.Verse

	// Unresolved are expected verses no source could supply text for. They
	// are not written.
	Unresolved []VerseRef

	// Expected is the image of every source verse in target.
	Expected map[bible.VerseSlot]bool

	Stats VerseStats
}

// PlanVerses computes the target row for every source verse of every paired
// chapter. Heading rows (verse 0) are copied from source. Other rows get
// placeholder text in scaffold mode, unless the target already holds real
// text, or the first text the policy finds in merge mode. Rows equal to the
// stored row are counted as unchanged and left out of Upserts.
func PlanVerses(chapters *ChapterPlan, source, target []bible.Verse, opts VerseOptions) *VersePlan {
	opts.Policy = opts.Policy.WithDefaults()

	bySourceChapter := make(map[string][]bible.Verse)
	for _, v := range source {
		bySourceChapter[v.ChapterID] = append(bySourceChapter[v.ChapterID], v)
	}
	targetBySlot := make(map[bible.VerseSlot]bible.Verse, len(target))
	for _, v := range target {
		targetBySlot[v.Slot()] = v
	}

	plan := &VersePlan{Expected: make(map[bible.VerseSlot]bool)}
	for _, cp := range chapters.Pairs {
		verses := bySourceChapter[cp.Source.ID]
		sort.Slice(verses, func(i, j int) bool { return verses[i].VerseNumber < verses[j].VerseNumber })
		bookKey := cp.SourceBook.Key()

		for _, sv := range verses {
			slot := bible.VerseSlot{ChapterID: cp.Target.ID, VerseNumber: sv.VerseNumber}
			if plan.Expected[slot] {
				continue
			}
			plan.Expected[slot] = true
			plan.Stats.Expected++

			existing, has := targetBySlot[slot]
			c := candidates{source: sv, existing: existing, hasExisting: has}
			if opts.Overlay != nil {
				c.extractText, c.extractPericope, c.hasExtract = opts.Overlay.Lookup(bookKey, cp.Source.ChapterNumber, sv.VerseNumber)
			}

			want := bible.Verse{ChapterID: cp.Target.ID, VerseNumber: sv.VerseNumber}
			switch {
			case sv.IsHeading():
				want.Text = sv.Text
				want.Pericope = sv.Pericope
				plan.Stats.Headings++
			case opts.Mode == ModeScaffold:
				if has && bible.HasContent(existing.Text) {
					want.Text = existing.Text
					plan.Stats.FromExisting++
				} else {
					want.Text = bible.PlaceholderText(cp.TargetBook.Name, cp.Target.ChapterNumber, sv.VerseNumber)
					plan.Stats.Placeholders++
				}
				want.Pericope = c.pericope(opts.Policy.Pericope)
			default:
				text, src, ok := c.text(opts.Policy.Text)
				if !ok {
					plan.Unresolved = append(plan.Unresolved, VerseRef{
						Book:    cp.TargetBook.Name,
						Chapter: cp.Target.ChapterNumber,
						Verse:   sv.VerseNumber,
						Reason:  "no text source",
					})
					continue
				}
				want.Text = text
				switch src {
				case SourceExtract:
					plan.Stats.FromExtract++
				case SourceFallback:
					plan.Stats.FromFallback++
				case SourceExisting:
					plan.Stats.FromExisting++
				}
				want.Pericope = c.pericope(opts.Policy.Pericope)
			}
			if want.Pericope != "" && !sv.IsHeading() {
				plan.Stats.Pericopes++
			}

			want = want.WithLegacy(cp.TargetBook.LegacyBookID, cp.Target.ChapterNumber)
			if has && existing.SameContent(want) {
				plan.Stats.Unchanged++
				continue
			}
			plan.Upserts = append(plan.Upserts, want)
		}
	}
	return plan
}

// candidates gathers what each source offers for one verse.
type candidates struct {
	source      bible.Verse
	existing    bible.Verse
	hasExisting bool

	extractText     string
	extractPericope string
	hasExtract      bool
}

func (c candidates) text(order []TextSource) (string, TextSource, bool) {
	for _, src := range order {
		switch src {
		case SourceExtract:
			if c.hasExtract && bible.HasContent(c.extractText) {
				return c.extractText, src, true
			}
		case SourceFallback:
			if bible.HasContent(c.source.Text) {
				return c.source.Text, src, true
			}
		case SourceExisting:
			if c.hasExisting && bible.HasContent(c.existing.Text) {
				return c.existing.Text, src, true
			}
		}
	}
	return "", "", false
}

func (c candidates) pericope(order []TextSource) string {
	for _, src := range order {
		switch src {
		case SourceExtract:
			if c.hasExtract && c.extractPericope != "" {
				return c.extractPericope
			}
		case SourceFallback:
			if c.source.Pericope != "" {
				return c.source.Pericope
			}
		case SourceExisting:
			if c.hasExisting && c.existing.Pericope != "" {
				return c.existing.Pericope
			}
		}
	}
	return ""
}
