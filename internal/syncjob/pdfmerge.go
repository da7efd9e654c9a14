package syncjob

import (
	"context"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/textkey"
	"github.com/FocuswithJustin/biblesync/internal/extract/pdfjson"
	"github.com/FocuswithJustin/biblesync/internal/logging"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
	"github.com/FocuswithJustin/biblesync/internal/report"
	"github.com/FocuswithJustin/biblesync/internal/validation"
)

// PDFMergeOptions configure PDFMerge.
type PDFMergeOptions struct {
	Common

	// ExtractPath is the JSON written by the PDF extraction step.
	ExtractPath string

	Language        string
	Version         string
	FallbackVersion string

	// Policy orders the text and pericope sources. A nil list takes its
	// DefaultPolicy order.
	Policy reconcile.Policy

	// KeepExtraBooks leaves target books missing from the fallback
	// workspace in place with all their chapters and verses.
	KeepExtraBooks bool
}

// PDFMerge fills the target workspace with real text. The fallback workspace
// supplies the structure; each verse takes the first text the policy finds
// in the extract, the fallback workspace or the stored row.
func (r *Runner) PDFMerge(ctx context.Context, opts PDFMergeOptions) (*Result, error) {
	if _, err := validation.RequireInputFile(opts.ExtractPath, validation.FileTypeJSON); err != nil {
		return nil, err
	}
	target, err := workspace(opts.Language, opts.Version)
	if err != nil {
		return nil, err
	}
	fallback, err := workspace(opts.Language, opts.FallbackVersion)
	if err != nil {
		return nil, err
	}
	policy := opts.Policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	ctx, rep, path, err := r.start(ctx, ScriptPDFMerge, opts.Common)
	if err != nil {
		return nil, err
	}
	rep.SetWorkspace("source", fallback)
	rep.SetWorkspace("target", target)
	rep.SetOption("extract", opts.ExtractPath)
	rep.SetOption("policy", policy.String())
	rep.SetOption("keep_extra_books", opts.KeepExtraBooks)

	logging.StageEvent(ctx, "read_extract", "path", opts.ExtractPath)
	ex, err := pdfjson.ReadFile(opts.ExtractPath)
	if err != nil {
		return nil, err
	}
	stats := ex.Stats()
	rep.Set("extract_books", stats.Books)
	rep.Set("extract_chapters", stats.Chapters)
	rep.Set("extract_verses", stats.Verses)
	rep.Set("extract_verses_with_text", stats.WithText)
	rep.Set("extract_pericopes", stats.Pericopes)

	consulted := make(map[extractSlot]bool)
	overlay := reconcile.OverlayFunc(func(bookKey string, chapter, verse int) (string, string, bool) {
		consulted[extractSlot{book: bookKey, chapter: chapter, verse: verse}] = true
		e, ok := ex.LookupKey(bookKey, chapter, verse)
		if !ok {
			return "", "", false
		}
		return textkey.CollapseSpace(e.Text), e.PericopeText(), true
	})

	plan, err := r.planWorkspaces(ctx, fallback, target, reconcile.VerseOptions{
		Mode:    reconcile.ModeMerge,
		Policy:  policy,
		Overlay: overlay,
	}, opts.KeepExtraBooks, opts.DryRun)
	if err != nil {
		return nil, err
	}
	if err := samplePlan(rep, plan, opts.SampleLimit); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(plan.Books.Pairs))
	for _, p := range plan.Books.Pairs {
		known[p.Source.Key()] = true
	}
	var unmatched []string
	for _, name := range ex.Books() {
		if !known[textkey.NormalizeBookKey(name)] {
			unmatched = append(unmatched, name)
		}
	}
	rep.Set("extract_books_unmatched", len(unmatched))
	report.Sample(rep, "extract_books_unmatched", unmatched, opts.SampleLimit)
	if len(unmatched) > 0 {
		logging.WarnContext(ctx, "extract books without a workspace book", "count", len(unmatched))
	}
	sampleExtractMisses(ctx, rep, plan, ex, known, consulted, opts.SampleLimit)

	if err := r.applyPlan(ctx, plan, opts.DryRun); err != nil {
		return nil, err
	}
	if err := r.recordFinalCounts(ctx, rep, target); err != nil {
		return nil, err
	}
	return r.publish(ctx, rep, path)
}

// extractSlot is a verse position in extract terms. Chapter-level entries
// leave verse at zero.
type extractSlot struct {
	book    string
	chapter int
	verse   int
}

// sampleExtractMisses reports extract chapters and verses of matched books
// that no workspace slot asked for. Their refs join the unresolved sample.
func sampleExtractMisses(ctx context.Context, rep *report.Report, plan *reconcile.Plan, ex *pdfjson.Extract,
	known map[string]bool, consulted map[extractSlot]bool, limit int) {
	chapters := make(map[extractSlot]bool, len(plan.Chapters.Pairs))
	for _, cp := range plan.Chapters.Pairs {
		chapters[extractSlot{book: cp.SourceBook.Key(), chapter: cp.Source.ChapterNumber}] = true
	}

	rep.Set("extract_chapters_unmatched", 0)
	rep.Set("extract_verses_unmatched", 0)
	var (
		chapterMisses []chapterSample
		verseMisses   []reconcile.VerseRef
	)
	last := extractSlot{}
	ex.Walk(func(bookKey string, chapter, verse int, _ pdfjson.Entry) {
		if !known[bookKey] {
			return
		}
		name := ex.Name(bookKey)
		ref := reconcile.VerseRef{Book: name, Chapter: chapter, Verse: verse}
		switch ch := (extractSlot{book: bookKey, chapter: chapter}); {
		case !chapters[ch]:
			if ch != last {
				rep.Add("extract_chapters_unmatched", 1)
				chapterMisses = append(chapterMisses, chapterSample{Book: name, Chapter: bible.ChapterLabel(name, chapter)})
				last = ch
			}
			ref.Reason = "no workspace chapter"
		case !consulted[extractSlot{book: bookKey, chapter: chapter, verse: verse}]:
			ref.Reason = "no workspace verse"
		default:
			return
		}
		rep.Add("extract_verses_unmatched", 1)
		verseMisses = append(verseMisses, ref)
	})
	if len(verseMisses) > 0 {
		logging.WarnContext(ctx, "extract verses without a workspace slot",
			"chapters", len(chapterMisses), "verses", len(verseMisses))
	}
	report.Sample(rep, "extract_chapters_unmatched", chapterMisses, limit)
	report.Sample(rep, "extract_verses_unmatched", verseMisses, limit)

	unresolved := make([]reconcile.VerseRef, 0, len(plan.Verses.Unresolved)+len(verseMisses))
	unresolved = append(unresolved, plan.Verses.Unresolved...)
	report.Sample(rep, "unresolved", append(unresolved, verseMisses...), limit)
}
