package syncjob

import (
	"context"
	"strings"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/textkey"
	"github.com/FocuswithJustin/biblesync/internal/extract/csvtext"
	"github.com/FocuswithJustin/biblesync/internal/logging"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
	"github.com/FocuswithJustin/biblesync/internal/report"
	"github.com/FocuswithJustin/biblesync/internal/validation"
)

// CSVImportOptions configure CSVImport.
type CSVImportOptions struct {
	Common

	CSVPath  string
	Language string
	Version  string

	// CleanText normalizes text and pericopes before comparing.
	CleanText bool
}

type changedSample struct {
	reconcile.VerseRef
	Before string `json:"before"`
	After  string `json:"after"`
}

type unmatchedRow struct {
	Line    int    `json:"line"`
	Book    string `json:"book_name"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
}

// CSVImport overlays refined text from a CSV table onto the verses the
// workspace already has. The table is a patch set: verses it does not cover
// are reported and kept, and no rows are created or deleted.
func (r *Runner) CSVImport(ctx context.Context, opts CSVImportOptions) (*Result, error) {
	if _, err := validation.RequireInputFile(opts.CSVPath, validation.FileTypeCSV, validation.FileTypeText); err != nil {
		return nil, err
	}
	ws, err := workspace(opts.Language, opts.Version)
	if err != nil {
		return nil, err
	}
	ctx, rep, path, err := r.start(ctx, ScriptCSVImport, opts.Common)
	if err != nil {
		return nil, err
	}
	rep.SetWorkspace("target", ws)
	rep.SetOption("csv", opts.CSVPath)
	rep.SetOption("clean_text", opts.CleanText)

	logging.StageEvent(ctx, "read_csv", "path", opts.CSVPath)
	table, err := csvtext.ReadFile(opts.CSVPath, csvtext.Options{Clean: opts.CleanText})
	if err != nil {
		return nil, err
	}
	rep.Set("csv_rows", table.DataRows)
	rep.Set("csv_keys", table.Len())

	snap, err := r.loadNonEmpty(ctx, ws, "target")
	if err != nil {
		return nil, err
	}

	matched := make(map[string]bool, table.Len())
	var blank []reconcile.VerseRef
	plan := reconcile.PlanOverlay(snap, func(b bible.Book, c bible.Chapter, v bible.Verse) (reconcile.Patch, bool) {
		key := textkey.VerseKey(b.Name, c.ChapterNumber, v.VerseNumber)
		row, ok := table.LookupKey(key)
		if !ok {
			return reconcile.Patch{}, false
		}
		matched[key] = true
		if strings.TrimSpace(row.Text) == "" {
			blank = append(blank, reconcile.VerseRef{Book: b.Name, Chapter: c.ChapterNumber, Verse: v.VerseNumber, Reason: "blank text in CSV"})
			return reconcile.Patch{Skip: true}, true
		}
		p := reconcile.Patch{Text: &row.Text}
		if row.Pericope != "" {
			p.Pericope = &row.Pericope
		}
		return p, true
	})

	var unmatched []unmatchedRow
	for _, key := range table.Keys() {
		if matched[key] {
			continue
		}
		row, _ := table.LookupKey(key)
		unmatched = append(unmatched, unmatchedRow{Line: row.Line, Book: row.Book, Chapter: row.Chapter, Verse: row.Verse})
	}

	idx := indexSnapshot(snap)
	before := make(map[bible.VerseSlot]string, len(snap.Verses))
	for _, v := range snap.Verses {
		before[v.Slot()] = v.Text
	}
	changed := make([]changedSample, len(plan.Updates))
	for i, v := range plan.Updates {
		changed[i] = changedSample{VerseRef: idx.ref(v, ""), Before: before[v.Slot()], After: v.Text}
	}

	rep.Set("rows_changed", len(plan.Updates))
	rep.Set("rows_unchanged", plan.Unchanged)
	rep.Set("missing_in_csv", len(plan.Missing))
	rep.Set("csv_rows_unmatched", len(unmatched))
	rep.Set("csv_duplicate_keys", len(table.Duplicates))
	rep.Set("csv_row_errors", len(table.Errors))
	rep.Set("csv_blank_text", len(blank))
	report.Sample(rep, "rows_changed", changed, opts.SampleLimit)
	report.Sample(rep, "missing_in_csv", plan.Missing, opts.SampleLimit)
	report.Sample(rep, "csv_rows_unmatched", unmatched, opts.SampleLimit)
	report.Sample(rep, "csv_duplicate_keys", table.Duplicates, opts.SampleLimit)
	report.Sample(rep, "csv_row_errors", table.Errors, opts.SampleLimit)
	report.Sample(rep, "csv_blank_text", blank, opts.SampleLimit)

	if err := r.writeVerses(ctx, plan.Updates, opts.DryRun); err != nil {
		return nil, err
	}
	if err := r.recordFinalCounts(ctx, rep, ws); err != nil {
		return nil, err
	}
	return r.publish(ctx, rep, path)
}
