package reconcile

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/errors"
)

// BookPair links a source book to its target counterpart.
type BookPair struct {
	Source bible.Book
	Target bible.Book
}

// BookPlan is the result of PairBooks.
type BookPlan struct {
	// Pairs holds one entry per source book, in source order. Target is the
	// book as it will be after the plan is applied.
	Pairs []BookPair

	// Creates are target books that do not exist yet.
	Creates []bible.Book

	// Updates are existing target books whose metadata changes.
	Updates []bible.Book

	// Extra are target books with no source counterpart.
	Extra []bible.Book
}

// TargetFor returns the target book paired with a source book id.
func (p *BookPlan) TargetFor(sourceID string) (bible.Book, bool) {
	for _, pair := range p.Pairs {
		if pair.Source.ID == sourceID {
			return pair.Target, true
		}
	}
	return bible.Book{}, false
}

// PairBooks matches target books to source books by normalized name. Paired
// books take the source's name, abbreviation, grouping and order. Unpaired
// source books are created in target with ids from newID and legacy ids from
// legacy, which must be seeded from every book in the table. A source book
// with an unknown grouping is rejected; an empty grouping is copied as is.
func PairBooks(source, target []bible.Book, ws bible.Workspace, legacy *bible.Sequence, newID IDFunc) (*BookPlan, error) {
	if err := uniqueKeys(source, "source"); err != nil {
		return nil, err
	}
	for _, b := range source {
		if b.Grouping != "" && !b.Grouping.IsValid() {
			return nil, errors.NewValidation("source books", fmt.Sprintf("%q has unknown grouping %q", b.Name, b.Grouping))
		}
	}
	if err := uniqueKeys(target, "target"); err != nil {
		return nil, err
	}

	byKey := make(map[string]bible.Book, len(target))
	for _, b := range target {
		byKey[b.Key()] = b
	}

	src := make([]bible.Book, len(source))
	copy(src, source)
	sort.SliceStable(src, func(i, j int) bool { return src[i].OrderIndex < src[j].OrderIndex })

	plan := &BookPlan{}
	paired := make(map[string]bool, len(src))
	for _, s := range src {
		key := s.Key()
		t, ok := byKey[key]
		if !ok {
			t = bible.Book{
				ID:           newID("book"),
				LanguageCode: ws.Language,
				VersionCode:  ws.Version,
				LegacyBookID: bible.IntPtr(legacy.Next()),
			}
			syncMetadata(&t, s)
			plan.Creates = append(plan.Creates, t)
		} else {
			changed := !t.SameMetadata(s)
			syncMetadata(&t, s)
			if t.LegacyBookID == nil {
				t.LegacyBookID = bible.IntPtr(legacy.Next())
				changed = true
			}
			if changed {
				plan.Updates = append(plan.Updates, t)
			}
		}
		paired[key] = true
		plan.Pairs = append(plan.Pairs, BookPair{Source: s, Target: t})
	}

	for _, b := range target {
		if !paired[b.Key()] {
			plan.Extra = append(plan.Extra, b)
		}
	}
	return plan, nil
}

func syncMetadata(t *bible.Book, s bible.Book) {
	t.Name = s.Name
	t.Abbreviation = s.Abbreviation
	t.Grouping = s.Grouping
	t.OrderIndex = s.OrderIndex
}

func uniqueKeys(books []bible.Book, side string) error {
	seen := make(map[string]string, len(books))
	for _, b := range books {
		key := b.Key()
		if prev, dup := seen[key]; dup {
			return errors.NewValidation(side+" books", fmt.Sprintf("%q and %q share the key %q", prev, b.Name, key))
		}
		seen[key] = b.Name
	}
	return nil
}
