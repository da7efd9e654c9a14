package bible

import "fmt"

// Sequence hands out consecutive integers. It replaces ad hoc shared counters:
// whoever needs fresh numbers receives the Sequence explicitly.
//
// A Sequence is not safe for concurrent use.
type Sequence struct {
	next int
}

// NewSequence returns a Sequence whose first Next() is start.
func NewSequence(start int) *Sequence {
	return &Sequence{next: start}
}

// Next returns the current value and advances.
func (s *Sequence) Next() int {
	v := s.next
	s.next++
	return v
}

// Peek returns the value the next call to Next will return.
func (s *Sequence) Peek() int {
	return s.next
}

// NewLegacyIDAllocator seeds a Sequence at one past the highest legacy book id
// in books. Callers must pass every book of the table, not one workspace, so
// minted ids stay globally unique.
func NewLegacyIDAllocator(books []Book) *Sequence {
	max := 0
	for _, b := range books {
		if b.LegacyBookID != nil && *b.LegacyBookID > max {
			max = *b.LegacyBookID
		}
	}
	return NewSequence(max + 1)
}

// IDMinter produces synthetic identifiers such as "dry-run:book:3" for rows
// that would be created in a dry run.
type IDMinter struct {
	prefix string
	seq    *Sequence
}

// NewIDMinter returns an IDMinter for the given prefix, starting at 1.
func NewIDMinter(prefix string) *IDMinter {
	return &IDMinter{prefix: prefix, seq: NewSequence(1)}
}

// Next returns a new identifier.
func (m *IDMinter) Next(kind string) string {
	return fmt.Sprintf("%s:%s:%d", m.prefix, kind, m.seq.Next())
}
