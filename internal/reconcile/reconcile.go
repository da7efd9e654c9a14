// Package reconcile maps a source workspace's book/chapter/verse graph onto a
// target workspace. Planning is pure: it reads two snapshots and produces the
// rows to create, update and delete. Apply then writes a plan in a fixed
// order. Because the plan always describes the full expected image of the
// source, rerunning after a partial failure converges on the same state.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/biblesync/core/bible"
)

// Mode selects how verse text is produced.
type Mode string

const (
	// ModeScaffold writes placeholder text for verses without content.
	ModeScaffold Mode = "scaffold"

	// ModeMerge writes real text chosen by the policy's source order.
	ModeMerge Mode = "merge"
)

// TextSource names one place verse text or a pericope may come from.
type TextSource string

const (
	// SourceExtract is the extracted overlay (PDF JSON, CSV).
	SourceExtract TextSource = "extract"

	// SourceFallback is the paired verse in the source workspace.
	SourceFallback TextSource = "fallback"

	// SourceExisting is whatever the target row already holds.
	SourceExisting TextSource = "existing"
)

var validSources = map[TextSource]bool{
	SourceExtract:  true,
	SourceFallback: true,
	SourceExisting: true,
}

// Policy orders the sources consulted for text and pericopes. The first
// source with content wins.
type Policy struct {
	Text     []TextSource `yaml:"text_sources" json:"text_sources"`
	Pericope []TextSource `yaml:"pericope_sources" json:"pericope_sources"`
}

// DefaultPolicy returns the trust order used when no policy file is given.
func DefaultPolicy() Policy {
	return Policy{
		Text:     []TextSource{SourceExtract, SourceFallback, SourceExisting},
		Pericope: []TextSource{SourceExtract, SourceExisting},
	}
}

// WithDefaults fills each nil source list from DefaultPolicy. An empty,
// non-nil list is kept.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.Text == nil {
		p.Text = def.Text
	}
	if p.Pericope == nil {
		p.Pericope = def.Pericope
	}
	return p
}

// Validate rejects unknown or repeated sources.
func (p Policy) Validate() error {
	for _, list := range []struct {
		name    string
		sources []TextSource
	}{{"text_sources", p.Text}, {"pericope_sources", p.Pericope}} {
		seen := make(map[TextSource]bool)
		for _, s := range list.sources {
			if !validSources[s] {
				return fmt.Errorf("%s: unknown source %q", list.name, s)
			}
			if seen[s] {
				return fmt.Errorf("%s: %q listed twice", list.name, s)
			}
			seen[s] = true
		}
	}
	return nil
}

// String renders the policy for reports.
func (p Policy) String() string {
	join := func(ss []TextSource) string {
		parts := make([]string, len(ss))
		for i, s := range ss {
			parts[i] = string(s)
		}
		return strings.Join(parts, ">")
	}
	return "text=" + join(p.Text) + " pericope=" + join(p.Pericope)
}

// Overlay supplies extracted content for a verse. bookKey is the normalized
// book name.
type Overlay interface {
	Lookup(bookKey string, chapter, verse int) (text, pericope string, ok bool)
}

// OverlayFunc adapts a function to Overlay.
type OverlayFunc func(bookKey string, chapter, verse int) (string, string, bool)

// Lookup implements Overlay.
func (f OverlayFunc) Lookup(bookKey string, chapter, verse int) (string, string, bool) {
	return f(bookKey, chapter, verse)
}

// IDFunc returns a new identifier for a row of the given kind ("book",
// "chapter").
type IDFunc func(kind string) string

// UUIDs mints random UUIDs for rows that will really be created.
func UUIDs() IDFunc {
	return func(string) string { return uuid.NewString() }
}

// DryRunIDs mints readable synthetic ids so a dry-run plan can still refer to
// books and chapters that do not exist yet.
func DryRunIDs() IDFunc {
	m := bible.NewIDMinter("dry-run")
	return m.Next
}

// VerseRef locates a verse in reports.
type VerseRef struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Reason  string `json:"reason,omitempty"`
}

func (r VerseRef) String() string {
	return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.Verse)
}
