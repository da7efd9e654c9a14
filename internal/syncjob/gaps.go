package syncjob

import (
	"context"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/ref"
	"github.com/FocuswithJustin/biblesync/internal/report"
)

// GapCheckOptions configure GapCheck.
type GapCheckOptions struct {
	Common

	Language string
	Version  string

	// Only restricts the check to a scope ("Kejadian; Rut 2").
	Only string

	// Lenient counts placeholder and blank rows as present.
	Lenient bool
}

// ChapterGap lists the missing verses of one chapter.
type ChapterGap struct {
	Book    string `json:"book"`
	Chapter string `json:"chapter"`
	Missing []int  `json:"missing"`
}

// GapCheck reports, per chapter, verses without a row and (unless lenient)
// rows that are placeholders or blank. It never writes to the store.
func (r *Runner) GapCheck(ctx context.Context, opts GapCheckOptions) (*Result, error) {
	ws, err := workspace(opts.Language, opts.Version)
	if err != nil {
		return nil, err
	}
	scope, err := ref.ParseScope(opts.Only)
	if err != nil {
		return nil, err
	}
	opts.DryRun = true
	ctx, rep, path, err := r.start(ctx, ScriptGapCheck, opts.Common)
	if err != nil {
		return nil, err
	}
	rep.SetWorkspace("target", ws)
	rep.SetOption("strict", !opts.Lenient)
	if !scope.IsEmpty() {
		rep.SetOption("only", scope.String())
	}

	snap, err := r.loadNonEmpty(ctx, ws, "target")
	if err != nil {
		return nil, err
	}
	chapters := chaptersByBook(snap.Chapters)
	verses := versesByChapter(snap.Verses)

	var gaps []ChapterGap
	var empty []chapterSample
	var checked, missing, placeholders int
	for _, b := range orderedBooks(snap.Books) {
		if !scope.IncludesBook(b.Name) {
			continue
		}
		for _, c := range chapters[b.ID] {
			if !scope.IncludesChapter(b.Name, c.ChapterNumber) {
				continue
			}
			checked++
			label := bible.ChapterLabel(b.Name, c.ChapterNumber)
			vs := verses[c.ID]
			for _, v := range vs {
				if bible.IsPlaceholder(v.Text) {
					placeholders++
				}
			}
			if len(vs) == 0 {
				empty = append(empty, chapterSample{Book: b.Name, Chapter: label})
				continue
			}
			m := bible.MissingVerses(vs, bible.GapOptions{Strict: !opts.Lenient})
			if len(m) == 0 {
				continue
			}
			missing += len(m)
			gaps = append(gaps, ChapterGap{Book: b.Name, Chapter: label, Missing: m})
		}
	}

	rep.Set("chapters_checked", checked)
	rep.Set("chapters_with_gaps", len(gaps))
	rep.Set("missing_verses", missing)
	rep.Set("placeholder_rows", placeholders)
	rep.Set("empty_chapters", len(empty))
	report.Sample(rep, "gaps", gaps, opts.SampleLimit)
	report.Sample(rep, "empty_chapters", empty, opts.SampleLimit)

	c := snap.Counts()
	rep.Set("final_books", c.Books)
	rep.Set("final_chapters", c.Chapters)
	rep.Set("final_verses", c.Verses)
	return r.publish(ctx, rep, path)
}
