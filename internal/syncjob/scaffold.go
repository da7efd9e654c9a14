package syncjob

import (
	"context"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
	"github.com/FocuswithJustin/biblesync/internal/report"
)

// ScaffoldOptions configure Scaffold.
type ScaffoldOptions struct {
	Common

	Language      string
	SourceVersion string
	TargetVersion string

	// KeepExtraBooks leaves target books without a source counterpart, and
	// everything under them, in place.
	KeepExtraBooks bool
}

// scaffoldPolicy keeps stored pericopes first and borrows the source's
// otherwise. Text comes from the scaffold rules, not the policy.
var scaffoldPolicy = reconcile.Policy{
	Text:     []reconcile.TextSource{reconcile.SourceExisting},
	Pericope: []reconcile.TextSource{reconcile.SourceExisting, reconcile.SourceFallback},
}

// Scaffold makes the target workspace an exact structural image of the
// source: books and chapters are created or synced, verses without real text
// get placeholders, and everything outside the image is deleted.
func (r *Runner) Scaffold(ctx context.Context, opts ScaffoldOptions) (*Result, error) {
	source, err := workspace(opts.Language, opts.SourceVersion)
	if err != nil {
		return nil, err
	}
	target, err := workspace(opts.Language, opts.TargetVersion)
	if err != nil {
		return nil, err
	}
	ctx, rep, path, err := r.start(ctx, ScriptScaffold, opts.Common)
	if err != nil {
		return nil, err
	}
	rep.SetWorkspace("source", source)
	rep.SetWorkspace("target", target)
	rep.SetOption("keep_extra_books", opts.KeepExtraBooks)

	plan, err := r.planWorkspaces(ctx, source, target, reconcile.VerseOptions{
		Mode:   reconcile.ModeScaffold,
		Policy: scaffoldPolicy,
	}, opts.KeepExtraBooks, opts.DryRun)
	if err != nil {
		return nil, err
	}
	if err := samplePlan(rep, plan, opts.SampleLimit); err != nil {
		return nil, err
	}
	report.Sample(rep, "placeholder_rows", placeholderRefs(plan), opts.SampleLimit)

	if err := r.applyPlan(ctx, plan, opts.DryRun); err != nil {
		return nil, err
	}
	if err := r.recordFinalCounts(ctx, rep, target); err != nil {
		return nil, err
	}
	return r.publish(ctx, rep, path)
}

// placeholderRefs lists the placeholder rows the plan writes.
func placeholderRefs(plan *reconcile.Plan) []reconcile.VerseRef {
	chapters := make(map[string]reconcile.ChapterPair, len(plan.Chapters.Pairs))
	for _, cp := range plan.Chapters.Pairs {
		chapters[cp.Target.ID] = cp
	}
	var out []reconcile.VerseRef
	for _, v := range plan.Verses.Upserts {
		if v.IsHeading() || !bible.IsPlaceholder(v.Text) {
			continue
		}
		cp := chapters[v.ChapterID]
		out = append(out, reconcile.VerseRef{Book: cp.TargetBook.Name, Chapter: cp.Target.ChapterNumber, Verse: v.VerseNumber})
	}
	return out
}
