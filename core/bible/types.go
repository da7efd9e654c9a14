// Package bible defines the workspace/book/chapter/verse model shared by every
// sync stage, plus the small amount of domain logic that belongs with it:
// placeholder detection, gap detection, sequence allocation and the Esther
// lettered-chapter table.
package bible

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/core/textkey"
)

// Workspace identifies one edition of scripture, e.g. id/TB2.
type Workspace struct {
	// Language is the language code (e.g., "id", "en").
	Language string `json:"language_code"`

	// Version is the edition code (e.g., "TB1", "TB2", "EN1").
	Version string `json:"version_code"`
}

// String returns "language/version".
func (w Workspace) String() string {
	return w.Language + "/" + w.Version
}

// Validate checks that both codes are present and contain no separators.
func (w Workspace) Validate() error {
	if strings.TrimSpace(w.Language) == "" {
		return errors.NewValidation("lang", "language code is required")
	}
	if strings.TrimSpace(w.Version) == "" {
		return errors.NewValidation("version", "version code is required")
	}
	if strings.ContainsAny(w.Language+w.Version, "/,() ") {
		return errors.NewValidation("workspace", fmt.Sprintf("invalid workspace %q", w.String()))
	}
	return nil
}

// ParseWorkspace parses "language/version".
func ParseWorkspace(s string) (Workspace, error) {
	lang, version, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Workspace{}, errors.NewValidation("workspace", fmt.Sprintf("expected language/version, got %q", s))
	}
	ws := Workspace{Language: lang, Version: version}
	return ws, ws.Validate()
}

// Grouping is the canonical section a book belongs to.
type Grouping string

// Grouping constants as stored in bible_books.grouping.
const (
	GroupingOld     Grouping = "old"
	GroupingNew     Grouping = "new"
	GroupingDeutero Grouping = "deutero"
)

// validGroupings is the set of valid groupings.
var validGroupings = map[Grouping]bool{
	GroupingOld:     true,
	GroupingNew:     true,
	GroupingDeutero: true,
}

// IsValid returns true if the grouping is one of the known values.
func (g Grouping) IsValid() bool {
	return validGroupings[g]
}

// VerseType is the legacy projection's row type.
type VerseType string

// Verse type constants.
const (
	VerseTypeVerse   VerseType = "verse"
	VerseTypeHeading VerseType = "heading"
)

// HeadingVerseNumber is the verse_number reserved for chapter/section heading rows.
const HeadingVerseNumber = 0

// Book is one row of bible_books.
type Book struct {
	// ID is the opaque, workspace-unique identifier.
	ID string `json:"id"`

	// LanguageCode and VersionCode scope the book to a workspace.
	LanguageCode string `json:"language_code"`
	VersionCode  string `json:"version_code"`

	// Name is the display name; its normalized form is unique per workspace.
	Name string `json:"name"`

	// Abbreviation is the short display name (optional).
	Abbreviation string `json:"abbreviation,omitempty"`

	// Grouping is the testament section.
	Grouping Grouping `json:"grouping,omitempty"`

	// OrderIndex defines canonical reading order within the workspace.
	OrderIndex int `json:"order_index"`

	// LegacyBookID mirrors the numeric id used by the denormalized verse projection.
	LegacyBookID *int `json:"legacy_book_id,omitempty"`
}

// Key returns the normalized name used to pair books across workspaces.
func (b Book) Key() string {
	return textkey.NormalizeBookKey(b.Name)
}

// Workspace returns the book's workspace.
func (b Book) Workspace() Workspace {
	return Workspace{Language: b.LanguageCode, Version: b.VersionCode}
}

// SameMetadata reports whether the mutable metadata synced from a source book
// already matches.
func (b Book) SameMetadata(src Book) bool {
	return b.Name == src.Name &&
		b.Abbreviation == src.Abbreviation &&
		b.Grouping == src.Grouping &&
		b.OrderIndex == src.OrderIndex
}

// Chapter is one row of bible_chapters.
type Chapter struct {
	ID            string `json:"id"`
	BookID        string `json:"book_id"`
	ChapterNumber int    `json:"chapter_number"`
}

// Verse is one row of bible_verses, including the legacy projection columns.
type Verse struct {
	ID          string `json:"id,omitempty"`
	ChapterID   string `json:"chapter_id"`
	VerseNumber int    `json:"verse_number"`
	Text        string `json:"text"`

	// Pericope is the sub-heading introducing this verse; empty means NULL.
	Pericope string `json:"pericope,omitempty"`

	// Legacy projection kept for older clients.
	LegacyBookID *int      `json:"book_id,omitempty"`
	Chapter      *int      `json:"chapter,omitempty"`
	Content      string    `json:"content,omitempty"`
	Type         VerseType `json:"type,omitempty"`
}

// IsHeading reports whether the row is a chapter/section heading row.
func (v Verse) IsHeading() bool {
	return v.VerseNumber == HeadingVerseNumber
}

// WithLegacy fills the legacy projection from the owning book and chapter.
func (v Verse) WithLegacy(legacyBookID *int, chapterNumber int) Verse {
	out := v
	if legacyBookID != nil {
		id := *legacyBookID
		out.LegacyBookID = &id
	} else {
		out.LegacyBookID = nil
	}
	ch := chapterNumber
	out.Chapter = &ch
	out.Content = v.Text
	if v.IsHeading() {
		out.Type = VerseTypeHeading
	} else {
		out.Type = VerseTypeVerse
	}
	return out
}

// SameContent reports whether a write of want over v would change any stored
// column. Text is compared byte for byte; callers normalize before planning.
func (v Verse) SameContent(want Verse) bool {
	return v.Text == want.Text &&
		v.Pericope == want.Pericope &&
		intPtrEqual(v.LegacyBookID, want.LegacyBookID) &&
		intPtrEqual(v.Chapter, want.Chapter) &&
		v.Content == want.Content &&
		v.Type == want.Type
}

// VerseSlot is the (chapter_id, verse_number) upsert conflict key.
type VerseSlot struct {
	ChapterID   string
	VerseNumber int
}

// Slot returns the verse's conflict key.
func (v Verse) Slot() VerseSlot {
	return VerseSlot{ChapterID: v.ChapterID, VerseNumber: v.VerseNumber}
}

// ChapterSlot is the (book_id, chapter_number) upsert conflict key.
type ChapterSlot struct {
	BookID        string
	ChapterNumber int
}

// Slot returns the chapter's conflict key.
func (c Chapter) Slot() ChapterSlot {
	return ChapterSlot{BookID: c.BookID, ChapterNumber: c.ChapterNumber}
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
