// Package syncjob runs the sync scenarios: English pericope backfill, TB2
// merge from a PDF extract, TB2 text import from CSV, TB2 scaffold from TB1,
// and the read-only gap check. Every run follows the same shape: load the
// workspaces, plan, apply unless dry-run, re-read the final counts, then write
// the report and print the stdout summary.
package syncjob

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/internal/logging"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
	"github.com/FocuswithJustin/biblesync/internal/report"
	"github.com/FocuswithJustin/biblesync/internal/store"
	"github.com/FocuswithJustin/biblesync/internal/validation"
)

// Script names. They name the report files and the run in logs.
const (
	ScriptPericopes = "sync_en1_pericopes_usccb"
	ScriptPDFMerge  = "sync_tb2_from_pdf"
	ScriptCSVImport = "sync_tb2_text_from_csv"
	ScriptScaffold  = "sync_tb2_reference_scaffold"
	ScriptGapCheck  = "check_gaps"
)

// Common are the options every run takes.
type Common struct {
	// DryRun computes everything but writes nothing to the store.
	DryRun bool

	// ReportPath overrides docs/import/<script>_report.json.
	ReportPath string

	// SampleLimit caps each sample list in the report.
	SampleLimit int
}

func (c Common) reportPath(script string) (string, error) {
	path := c.ReportPath
	if path == "" {
		path = report.DefaultPath(script)
	}
	if err := validation.ValidateReportPath(path); err != nil {
		return "", errors.NewValidation("report", err.Error())
	}
	return path, nil
}

// Runner executes sync runs against one repository.
type Runner struct {
	Repo *store.Repository

	// Stdout receives the JSON summary. os.Stdout when nil.
	Stdout io.Writer
}

// NewRunner returns a Runner printing to os.Stdout.
func NewRunner(repo *store.Repository) *Runner {
	return &Runner{Repo: repo, Stdout: os.Stdout}
}

// Result is a finished run.
type Result struct {
	Report     *report.Report
	ReportPath string
}

func (r *Runner) start(ctx context.Context, script string, c Common) (context.Context, *report.Report, string, error) {
	path, err := c.reportPath(script)
	if err != nil {
		return ctx, nil, "", err
	}
	ctx = logging.WithJob(ctx, script)
	rep := report.New(script, logging.GetRunID(ctx), c.DryRun)
	logging.InfoContext(ctx, "sync started", "dry_run", c.DryRun, "report", path)
	return ctx, rep, path, nil
}

// publish stamps the end time, writes the report and prints the summary.
func (r *Runner) publish(ctx context.Context, rep *report.Report, path string) (*Result, error) {
	rep.Finish()
	if err := rep.Write(path); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	out := r.Stdout
	if out == nil {
		out = os.Stdout
	}
	if err := report.PrintSummary(out, rep.Brief(path)); err != nil {
		return nil, err
	}
	logging.InfoContext(ctx, "sync finished", "report", path, "elapsed", rep.FinishedAt.Sub(rep.StartedAt).String())
	return &Result{Report: rep, ReportPath: path}, nil
}

// recordFinalCounts re-reads a workspace after the run.
func (r *Runner) recordFinalCounts(ctx context.Context, rep *report.Report, ws bible.Workspace) error {
	logging.StageEvent(ctx, "final_counts", "workspace", ws.String())
	c, err := r.Repo.Counts(ctx, ws)
	if err != nil {
		return err
	}
	rep.Set("final_books", c.Books)
	rep.Set("final_chapters", c.Chapters)
	rep.Set("final_verses", c.Verses)
	return nil
}

// loadNonEmpty loads a workspace and fails when it has no books.
func (r *Runner) loadNonEmpty(ctx context.Context, ws bible.Workspace, role string) (*store.Snapshot, error) {
	logging.StageEvent(ctx, "fetch_"+role, "workspace", ws.String())
	snap, err := r.Repo.LoadWorkspace(ctx, ws)
	if err != nil {
		return nil, err
	}
	if len(snap.Books) == 0 {
		return nil, errors.NewNotFound(role+" workspace", ws.String())
	}
	logging.InfoContext(ctx, "workspace loaded", "role", role, "workspace", ws.String(),
		"books", len(snap.Books), "chapters", len(snap.Chapters), "verses", len(snap.Verses))
	return snap, nil
}

func workspace(lang, version string) (bible.Workspace, error) {
	ws := bible.Workspace{Language: lang, Version: version}
	if err := ws.Validate(); err != nil {
		return ws, err
	}
	if err := validation.ValidateCode("lang", lang); err != nil {
		return ws, errors.NewValidation("lang", err.Error())
	}
	if err := validation.ValidateCode("version", version); err != nil {
		return ws, errors.NewValidation("version", err.Error())
	}
	return ws, nil
}

// planWorkspaces builds a reconciliation plan of source onto target.
func (r *Runner) planWorkspaces(ctx context.Context, source, target bible.Workspace, verses reconcile.VerseOptions, keepExtraBooks, dryRun bool) (*reconcile.Plan, error) {
	if source == target {
		return nil, errors.NewValidation("version", "source and target workspace are the same: "+source.String())
	}
	src, err := r.loadNonEmpty(ctx, source, "source")
	if err != nil {
		return nil, err
	}
	logging.StageEvent(ctx, "fetch_target", "workspace", target.String())
	tgt, err := r.Repo.LoadWorkspace(ctx, target)
	if err != nil {
		return nil, err
	}
	all, err := r.Repo.ListAllBooks(ctx)
	if err != nil {
		return nil, err
	}
	legacy := bible.NewLegacyIDAllocator(all)
	logging.DebugContext(ctx, "legacy book ids", "books", len(all), "next", legacy.Peek())

	newID := reconcile.UUIDs()
	if dryRun {
		newID = reconcile.DryRunIDs()
	}
	logging.StageEvent(ctx, "plan", "mode", string(verses.Mode), "policy", verses.Policy.String())
	return reconcile.Build(reconcile.Input{
		Source:         src,
		Target:         tgt,
		Legacy:         legacy,
		Verses:         verses,
		KeepExtraBooks: keepExtraBooks,
		NewID:          newID,
	})
}

// applyPlan writes plan unless dryRun.
func (r *Runner) applyPlan(ctx context.Context, plan *reconcile.Plan, dryRun bool) error {
	if dryRun {
		logging.InfoContext(ctx, "dry run, store left untouched")
		return nil
	}
	return reconcile.Apply(ctx, r.Repo, plan)
}

// writeVerses upserts overlay updates unless dryRun.
func (r *Runner) writeVerses(ctx context.Context, verses []bible.Verse, dryRun bool) error {
	if dryRun {
		logging.InfoContext(ctx, "dry run, store left untouched", "updates", len(verses))
		return nil
	}
	if len(verses) == 0 {
		return nil
	}
	logging.StageEvent(ctx, "upsert_verses", "rows", len(verses))
	if err := r.Repo.UpsertVerses(ctx, verses); err != nil {
		return fmt.Errorf("upsert_verses: %w", err)
	}
	return nil
}

type bookSample struct {
	Name         string `json:"name"`
	LegacyBookID *int   `json:"legacy_book_id,omitempty"`
}

type chapterSample struct {
	Book    string `json:"book"`
	Chapter string `json:"chapter"`
}

// samplePlan fills the report with the plan's counts and sample lists.
func samplePlan(rep *report.Report, plan *reconcile.Plan, limit int) error {
	if err := rep.Merge(plan.Summary()); err != nil {
		return err
	}

	books := func(list []bible.Book) []bookSample {
		out := make([]bookSample, len(list))
		for i, b := range list {
			out[i] = bookSample{Name: b.Name, LegacyBookID: b.LegacyBookID}
		}
		return out
	}
	report.Sample(rep, "created_books", books(plan.Books.Creates), limit)
	report.Sample(rep, "updated_books", books(plan.Books.Updates), limit)
	report.Sample(rep, "extra_books", books(plan.Books.Extra), limit)
	report.Sample(rep, "deleted_books", books(plan.Prune.Books), limit)

	bookNames := make(map[string]string)
	for _, p := range plan.Books.Pairs {
		bookNames[p.Target.ID] = p.Target.Name
	}
	for _, b := range plan.Books.Extra {
		bookNames[b.ID] = b.Name
	}
	chapters := func(list []bible.Chapter) []chapterSample {
		out := make([]chapterSample, len(list))
		for i, c := range list {
			name := bookNames[c.BookID]
			out[i] = chapterSample{Book: name, Chapter: bible.ChapterLabel(name, c.ChapterNumber)}
		}
		return out
	}
	report.Sample(rep, "created_chapters", chapters(plan.Chapters.Creates), limit)
	report.Sample(rep, "deleted_chapters", chapters(plan.Prune.Chapters), limit)
	report.Sample(rep, "unresolved", plan.Verses.Unresolved, limit)
	return nil
}

// snapshotIndex resolves chapter ids back to book names and numbers.
type snapshotIndex struct {
	books    map[string]bible.Book
	chapters map[string]bible.Chapter
}

func indexSnapshot(snap *store.Snapshot) snapshotIndex {
	idx := snapshotIndex{
		books:    make(map[string]bible.Book, len(snap.Books)),
		chapters: make(map[string]bible.Chapter, len(snap.Chapters)),
	}
	for _, b := range snap.Books {
		idx.books[b.ID] = b
	}
	for _, c := range snap.Chapters {
		idx.chapters[c.ID] = c
	}
	return idx
}

// ref locates a verse by chapter id.
func (idx snapshotIndex) ref(v bible.Verse, reason string) reconcile.VerseRef {
	c := idx.chapters[v.ChapterID]
	return reconcile.VerseRef{
		Book:    idx.books[c.BookID].Name,
		Chapter: c.ChapterNumber,
		Verse:   v.VerseNumber,
		Reason:  reason,
	}
}

// orderedBooks returns books sorted by order_index, then name.
func orderedBooks(books []bible.Book) []bible.Book {
	out := make([]bible.Book, len(books))
	copy(out, books)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// chaptersByBook groups chapters by book id, each group sorted by number.
func chaptersByBook(chapters []bible.Chapter) map[string][]bible.Chapter {
	out := make(map[string][]bible.Chapter)
	for _, c := range chapters {
		out[c.BookID] = append(out[c.BookID], c)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].ChapterNumber < list[j].ChapterNumber })
	}
	return out
}

// versesByChapter groups verses by chapter id, each group sorted by number.
func versesByChapter(verses []bible.Verse) map[string][]bible.Verse {
	out := make(map[string][]bible.Verse)
	for _, v := range verses {
		out[v.ChapterID] = append(out[v.ChapterID], v)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].VerseNumber < list[j].VerseNumber })
	}
	return out
}
