package syncjob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/cas"
	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/core/ref"
	"github.com/FocuswithJustin/biblesync/core/textkey"
	"github.com/FocuswithJustin/biblesync/internal/extract/markdown"
	"github.com/FocuswithJustin/biblesync/internal/logging"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
	"github.com/FocuswithJustin/biblesync/internal/report"
	"github.com/FocuswithJustin/biblesync/internal/source"
	"github.com/FocuswithJustin/biblesync/internal/validation"
)

// PericopeOptions configure PericopeSync.
type PericopeOptions struct {
	Common

	Language string
	Version  string

	// BaseURL is the Markdown mirror; pages live at BaseURL/<slug>/<n>.md.
	BaseURL string

	// Only restricts the run to a scope ("Genesis; Psalms 23; Esther A").
	Only string

	// CacheDir enables the content-addressed page cache.
	CacheDir string

	Concurrency int
	Timeout     time.Duration
	Retries     int

	// Slug maps a book name to its URL slug. textkey.SlugifyBookName when nil.
	Slug func(bookName string) string

	// Client overrides the fetcher built from the options above (tests).
	Client *source.Client
}

type sourceError struct {
	Book    string `json:"book"`
	Chapter string `json:"chapter"`
	URL     string `json:"url"`
	Error   string `json:"error"`
}

type missingSection struct {
	Book    string `json:"book"`
	Chapter string `json:"chapter"`
	URL     string `json:"url,omitempty"`
}

type headingRef struct {
	Book    string `json:"book"`
	Chapter string `json:"chapter"`
	Verse   int    `json:"verse"`
	Target  int    `json:"target_verse,omitempty"`
	Title   string `json:"title"`
}

// pageJob is one fetched page and the chapters it can supply.
type pageJob struct {
	book    bible.Book
	chapter bible.Chapter // zero for Esther pages
	page    int
}

// PericopeSync fetches one Markdown page per chapter, extracts the section
// headings, and writes them as pericopes of the existing verses. Verses of a
// successfully parsed chapter lose any pericope the page no longer has.
// Chapters whose page failed or lacked the section are left alone.
func (r *Runner) PericopeSync(ctx context.Context, opts PericopeOptions) (*Result, error) {
	ws, err := workspace(opts.Language, opts.Version)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if err := validation.ValidateBaseURL(base); err != nil {
		return nil, errors.NewConfig("base-url", err.Error())
	}
	scope, err := ref.ParseScope(opts.Only)
	if err != nil {
		return nil, errors.NewValidation("only", err.Error())
	}
	client, err := opts.client(ctx)
	if err != nil {
		return nil, err
	}
	slug := opts.Slug
	if slug == nil {
		slug = textkey.SlugifyBookName
	}

	ctx, rep, path, err := r.start(ctx, ScriptPericopes, opts.Common)
	if err != nil {
		return nil, err
	}
	rep.SetWorkspace("target", ws)
	rep.SetOption("base_url", base)
	if !scope.IsEmpty() {
		rep.SetOption("only", scope.String())
	}

	snap, err := r.loadNonEmpty(ctx, ws, "target")
	if err != nil {
		return nil, err
	}
	chapters := chaptersByBook(snap.Chapters)
	verses := versesByChapter(snap.Verses)

	// One page per chapter; Esther is spread over a fixed set of pages whose
	// sections are placed by label.
	var pages []pageJob
	var jobs []source.Job
	add := func(p pageJob, n int) {
		url := fmt.Sprintf("%s/%s/%d.md", base, slug(p.book.Name), n)
		pages = append(pages, p)
		jobs = append(jobs, source.Job{Key: fmt.Sprintf("%s %d", p.book.Name, n), URL: url})
	}
	selected := 0
	for _, b := range orderedBooks(snap.Books) {
		if !scope.IncludesBook(b.Name) {
			continue
		}
		var inScope []bible.Chapter
		for _, c := range chapters[b.ID] {
			if scope.IncludesChapter(b.Name, c.ChapterNumber) {
				inScope = append(inScope, c)
			}
		}
		if len(inScope) == 0 {
			continue
		}
		selected += len(inScope)
		if bible.IsEsther(b.Name) {
			for n := 1; n <= bible.EstherSourcePages; n++ {
				add(pageJob{book: b, page: n}, n)
			}
			continue
		}
		for _, c := range inScope {
			add(pageJob{book: b, chapter: c, page: c.ChapterNumber}, c.ChapterNumber)
		}
	}
	rep.Set("chapters_selected", selected)
	rep.Set("pages_requested", len(jobs))

	logging.StageEvent(ctx, "fetch_pages", "pages", len(jobs), "concurrency", opts.concurrency())
	results := client.FetchAll(ctx, jobs, opts.concurrency())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		srcErrors   []sourceError
		missing     []missingSection
		documents   []*source.Document
		parsed      = make(map[string][]markdown.Heading) // chapter id
		estherPages = make(map[string]map[int]string)    // book id -> page -> body
		estherBooks = make(map[string]bible.Book)
	)
	for i, res := range results {
		p := pages[i]
		label := strconv.Itoa(p.page)
		if res.Err != nil {
			if p.chapter.ID != "" {
				label = bible.ChapterLabel(p.book.Name, p.chapter.ChapterNumber)
			}
			srcErrors = append(srcErrors, sourceError{Book: p.book.Name, Chapter: label, URL: res.Job.URL, Error: res.Err.Error()})
			logging.WarnContext(ctx, "page fetch failed", "book", p.book.Name, "page", p.page, "error", res.Err)
			continue
		}
		documents = append(documents, res.Doc)

		if p.chapter.ID == "" {
			if estherPages[p.book.ID] == nil {
				estherPages[p.book.ID] = make(map[int]string)
			}
			estherPages[p.book.ID][p.page] = res.Doc.Text()
			estherBooks[p.book.ID] = p.book
			continue
		}
		headings, ok := markdown.FindChapter(markdown.Parse(res.Doc.Text()), label)
		if !ok {
			missing = append(missing, missingSection{Book: p.book.Name, Chapter: label, URL: res.Job.URL})
			continue
		}
		parsed[p.chapter.ID] = headings
	}

	for bookID, bodies := range estherPages {
		b := estherBooks[bookID]
		byNumber := markdown.ClassifyEstherPages(bodies)
		for _, c := range chapters[bookID] {
			if !scope.IncludesChapter(b.Name, c.ChapterNumber) {
				continue
			}
			headings, ok := byNumber[c.ChapterNumber]
			if !ok {
				missing = append(missing, missingSection{Book: b.Name, Chapter: bible.ChapterLabel(b.Name, c.ChapterNumber)})
				continue
			}
			parsed[c.ID] = headings
		}
	}

	// Place headings on the verses that exist.
	titles := make(map[string]map[int]string, len(parsed))
	var unresolved, fallbacks []headingRef
	found := 0
	for _, b := range orderedBooks(snap.Books) {
		for _, c := range chapters[b.ID] {
			headings, ok := parsed[c.ID]
			if !ok {
				continue
			}
			label := bible.ChapterLabel(b.Name, c.ChapterNumber)
			found += len(headings)

			var nums []int
			for _, v := range verses[c.ID] {
				nums = append(nums, v.VerseNumber)
			}
			resolved, lost := markdown.ResolveHeadings(headings, nums)
			titles[c.ID] = make(map[int]string, len(resolved))
			for _, res := range resolved {
				titles[c.ID][res.Target] = res.Title
				if res.Fallback {
					fallbacks = append(fallbacks, headingRef{Book: b.Name, Chapter: label, Verse: res.Verse, Target: res.Target, Title: res.Title})
				}
			}
			for _, h := range lost {
				unresolved = append(unresolved, headingRef{Book: b.Name, Chapter: label, Verse: h.Verse, Title: h.Title})
			}
		}
	}

	cleared := 0
	plan := reconcile.PlanOverlay(snap, func(b bible.Book, c bible.Chapter, v bible.Verse) (reconcile.Patch, bool) {
		byVerse, ok := titles[c.ID]
		if !ok || v.IsHeading() {
			return reconcile.Patch{Skip: true}, true
		}
		title := byVerse[v.VerseNumber]
		if title == "" && v.Pericope != "" {
			cleared++
		}
		return reconcile.Patch{Pericope: &title}, true
	})

	rep.Set("pages_fetched", len(documents))
	rep.Set("source_errors", len(srcErrors))
	rep.Set("missing_sections", len(missing))
	rep.Set("chapters_parsed", len(parsed))
	rep.Set("headings_found", found)
	rep.Set("fallback_resolved", len(fallbacks))
	rep.Set("unresolved", len(unresolved))
	rep.Set("updates_prepared", len(plan.Updates))
	rep.Set("verses_unchanged", plan.Unchanged)
	rep.Set("pericopes_cleared", cleared)
	report.Sample(rep, "source_errors", srcErrors, opts.SampleLimit)
	report.Sample(rep, "missing_sections", missing, opts.SampleLimit)
	report.Sample(rep, "fallback_resolved", fallbacks, opts.SampleLimit)
	report.Sample(rep, "unresolved", unresolved, opts.SampleLimit)
	report.Sample(rep, "documents", documents, report.MaxSampleLimit)

	if err := r.writeVerses(ctx, plan.Updates, opts.DryRun); err != nil {
		return nil, err
	}
	if err := r.recordFinalCounts(ctx, rep, ws); err != nil {
		return nil, err
	}
	return r.publish(ctx, rep, path)
}

func (o PericopeOptions) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return source.DefaultConcurrency
}

func (o PericopeOptions) client(ctx context.Context) (*source.Client, error) {
	if o.Client != nil {
		return o.Client, nil
	}
	opts := source.Options{
		Timeout: o.Timeout,
		Retries: o.Retries,
		Check:   source.RejectBotPages,
	}
	if o.CacheDir != "" {
		if err := validation.ValidatePath(o.CacheDir); err != nil {
			return nil, errors.NewValidation("cache-dir", err.Error())
		}
		cache, err := cas.NewStore(o.CacheDir)
		if err != nil {
			return nil, err
		}
		logging.DebugContext(ctx, "page cache enabled", "root", cache.Root())
		opts.Cache = cache
	}
	return source.NewClient(opts), nil
}
