package syncjob

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
	"github.com/FocuswithJustin/biblesync/internal/source"
	"github.com/FocuswithJustin/biblesync/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func TestCSVImport(t *testing.T) {
	repo := openRepo(t)
	seed(t, repo,
		[]bible.Book{book("t-kej", tb2, "Kejadian", 1, 1)},
		[]bible.Chapter{
			{ID: "t-kej-1", BookID: "t-kej", ChapterNumber: 1},
			{ID: "t-kej-2", BookID: "t-kej", ChapterNumber: 2},
		},
		[]bible.Verse{
			verse("t-kej-1", 1, bible.PlaceholderText("Kejadian", 1, 1), 1, 1),
			verse("t-kej-1", 2, "Bumi belum berbentuk", 1, 1),
			verse("t-kej-2", 1, "Demikianlah", 1, 2),
		},
	)
	csvPath := writeFile(t, "tb2.csv", "book_name,chapter,verse,text\n"+
		"Kejadian,1,1,\"Pada mulanya...\"\n"+
		"Kejadian,1,2,\"Bumi  belum berbentuk\"\n"+
		"Kejadian,1,9,Tidak ada\n"+
		"Kejadian,x,1,rusak\n"+
		"KEJADIAN,1,9,Tidak ada lagi\n")
	runner, out := newRunner(repo)
	ctx := context.Background()
	keys := []string{
		"csv_rows", "csv_keys", "rows_changed", "rows_unchanged", "missing_in_csv",
		"csv_rows_unmatched", "csv_duplicate_keys", "csv_row_errors",
	}

	opts := CSVImportOptions{CSVPath: csvPath, Language: "id", Version: "TB2", Common: common(t, false)}
	res, err := runner.CSVImport(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{
		"csv_rows": 5, "csv_keys": 3, "rows_changed": 2, "rows_unchanged": 0, "missing_in_csv": 1,
		"csv_rows_unmatched": 1, "csv_duplicate_keys": 1, "csv_row_errors": 1,
	}
	if diff := cmp.Diff(want, pick(res.Report.Summary, keys...)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	wantMissing := []reconcile.VerseRef{{Book: "Kejadian", Chapter: 2, Verse: 1}}
	if diff := cmp.Diff(wantMissing, res.Report.Samples["missing_in_csv"]); diff != "" {
		t.Errorf("missing_in_csv mismatch (-want +got):\n%s", diff)
	}
	decodeStdout(t, out)

	v := verseText(t, repo, tb2, "Kejadian", 1, 1)
	if v.Text != "Pada mulanya..." || v.Content != "Pada mulanya..." {
		t.Errorf("Kejadian 1:1 = %q / %q", v.Text, v.Content)
	}
	if got := verseText(t, repo, tb2, "Kejadian", 1, 2).Text; got != "Bumi  belum berbentuk" {
		t.Errorf("Kejadian 1:2 = %q, want the CSV spacing", got)
	}
	if got := verseText(t, repo, tb2, "Kejadian", 2, 1).Text; got != "Demikianlah" {
		t.Errorf("verse missing from CSV was changed: %q", got)
	}

	opts.Common = common(t, false)
	res, err = runner.CSVImport(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := pick(res.Report.Summary, "rows_changed", "rows_unchanged"); got["rows_changed"] != 0 || got["rows_unchanged"] != 2 {
		t.Errorf("second run = %v, want 0 changed and 2 unchanged", got)
	}
	decodeStdout(t, out)
}

func TestCSVImportWhitespaceRefinement(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		csvText   string
		clean     bool
		changed   int
		unchanged int
		want      string
	}{
		{name: "spacing removed", stored: "Pada  mulanya Allah ", csvText: "Pada mulanya Allah", changed: 1, want: "Pada mulanya Allah"},
		{name: "spacing added", stored: "Pada mulanya Allah", csvText: `"Pada  mulanya Allah"`, changed: 1, want: "Pada  mulanya Allah"},
		{name: "clean text collapses spacing", stored: "Pada mulanya Allah", csvText: `"Pada  mulanya Allah"`, clean: true, unchanged: 1, want: "Pada mulanya Allah"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := openRepo(t)
			seed(t, repo,
				[]bible.Book{book("t-kej", tb2, "Kejadian", 1, 1)},
				[]bible.Chapter{{ID: "t-kej-1", BookID: "t-kej", ChapterNumber: 1}},
				[]bible.Verse{verse("t-kej-1", 1, tt.stored, 1, 1)},
			)
			csvPath := writeFile(t, "tb2.csv", "book_name,chapter,verse,text\nKejadian,1,1,"+tt.csvText+"\n")
			runner, _ := newRunner(repo)

			res, err := runner.CSVImport(context.Background(), CSVImportOptions{
				CSVPath:   csvPath,
				Language:  "id",
				Version:   "TB2",
				CleanText: tt.clean,
				Common:    common(t, false),
			})
			if err != nil {
				t.Fatal(err)
			}
			got := pick(res.Report.Summary, "rows_changed", "rows_unchanged")
			if diff := cmp.Diff(map[string]int{"rows_changed": tt.changed, "rows_unchanged": tt.unchanged}, got); diff != "" {
				t.Errorf("summary mismatch (-want +got):\n%s", diff)
			}
			if v := verseText(t, repo, tb2, "Kejadian", 1, 1); v.Text != tt.want {
				t.Errorf("Kejadian 1:1 = %q, want %q", v.Text, tt.want)
			}
		})
	}
}

func TestCSVImportDryRun(t *testing.T) {
	repo := openRepo(t)
	seed(t, repo,
		[]bible.Book{book("t-kej", tb2, "Kejadian", 1, 1)},
		[]bible.Chapter{{ID: "t-kej-1", BookID: "t-kej", ChapterNumber: 1}},
		[]bible.Verse{verse("t-kej-1", 1, bible.PlaceholderText("Kejadian", 1, 1), 1, 1)},
	)
	csvPath := writeFile(t, "tb2.csv", "kitab,pasal,ayat,teks,perikop\nKejadian,1,1,Pada mulanya,Penciptaan\n")
	runner, out := newRunner(repo)

	res, err := runner.CSVImport(context.Background(), CSVImportOptions{CSVPath: csvPath, Language: "id", Version: "TB2", Common: common(t, true)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Summary["rows_changed"] != 1 {
		t.Errorf("rows_changed = %d, want 1", res.Report.Summary["rows_changed"])
	}
	if s := decodeStdout(t, out); !s.DryRun {
		t.Error("stdout summary should report dry_run")
	}
	if got := verseText(t, repo, tb2, "Kejadian", 1, 1).Text; !bible.IsPlaceholder(got) {
		t.Errorf("dry run wrote %q", got)
	}
}

func TestCSVImportMissingFile(t *testing.T) {
	runner, _ := newRunner(openRepo(t))
	_, err := runner.CSVImport(context.Background(), CSVImportOptions{
		CSVPath:  filepath.Join(t.TempDir(), "nope.csv"),
		Language: "id",
		Version:  "TB2",
		Common:   common(t, false),
	})
	if err == nil {
		t.Fatal("CSVImport() with a missing file should fail")
	}
}

func TestPDFMerge(t *testing.T) {
	repo := openRepo(t)
	seed(t, repo,
		[]bible.Book{book("s-kej", tb1, "Kejadian", 1, 1)},
		[]bible.Chapter{{ID: "s-kej-1", BookID: "s-kej", ChapterNumber: 1}},
		[]bible.Verse{
			verse("s-kej-1", 1, "Pada mulanya (TB1)", 1, 1),
			verse("s-kej-1", 2, "Bumi (TB1)", 1, 1),
		},
	)
	extract := writeFile(t, "tb2.json", `{"books": {
		"Kejadian": {"1": {"1": {"text": "Pada  mulanya Allah", "pericope": "Penciptaan"}}},
		"Tobit": {"1": {"1": {"text": "Aku, Tobit"}}}
	}}`)
	runner, out := newRunner(repo)
	ctx := context.Background()
	keys := []string{
		"created_books", "created_chapters", "updates_prepared", "text_from_extract",
		"text_from_fallback", "pericopes", "unresolved_verses", "extract_books_unmatched", "final_verses",
	}

	opts := PDFMergeOptions{ExtractPath: extract, Language: "id", Version: "TB2", FallbackVersion: "TB1", Common: common(t, false)}
	res, err := runner.PDFMerge(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{
		"created_books": 1, "created_chapters": 1, "updates_prepared": 2, "text_from_extract": 1,
		"text_from_fallback": 1, "pericopes": 1, "unresolved_verses": 0, "extract_books_unmatched": 1, "final_verses": 2,
	}
	if diff := cmp.Diff(want, pick(res.Report.Summary, keys...)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	decodeStdout(t, out)

	v := verseText(t, repo, tb2, "Kejadian", 1, 1)
	if v.Text != "Pada mulanya Allah" || v.Pericope != "Penciptaan" {
		t.Errorf("Kejadian 1:1 = %q (%q)", v.Text, v.Pericope)
	}
	if v.LegacyBookID == nil || *v.LegacyBookID != 2 {
		t.Errorf("legacy book id = %v, want 2", v.LegacyBookID)
	}
	if got := verseText(t, repo, tb2, "Kejadian", 1, 2).Text; got != "Bumi (TB1)" {
		t.Errorf("Kejadian 1:2 = %q, want fallback text", got)
	}

	opts.Common = common(t, false)
	res, err = runner.PDFMerge(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if n := res.Report.Summary["updates_prepared"] + res.Report.Summary["created_books"]; n != 0 {
		t.Errorf("second run prepared %d writes, want 0", n)
	}
	decodeStdout(t, out)
}

func TestPDFMergePolicy(t *testing.T) {
	repo := openRepo(t)
	seed(t, repo,
		[]bible.Book{book("s-kej", tb1, "Kejadian", 1, 1)},
		[]bible.Chapter{{ID: "s-kej-1", BookID: "s-kej", ChapterNumber: 1}},
		[]bible.Verse{verse("s-kej-1", 1, "Pada mulanya (TB1)", 1, 1), verse("s-kej-1", 2, "Bumi (TB1)", 1, 1)},
	)
	extract := writeFile(t, "tb2.json", `{"Kejadian": {"1": {"1": {"text": "Pada mulanya Allah"}}}}`)
	runner, _ := newRunner(repo)

	res, err := runner.PDFMerge(context.Background(), PDFMergeOptions{
		ExtractPath:     extract,
		Language:        "id",
		Version:         "TB2",
		FallbackVersion: "TB1",
		Policy:          reconcile.Policy{Text: []reconcile.TextSource{reconcile.SourceExtract}},
		Common:          common(t, true),
	})
	if err != nil {
		t.Fatal(err)
	}
	got := pick(res.Report.Summary, "updates_prepared", "unresolved_verses", "text_from_fallback")
	if diff := cmp.Diff(map[string]int{"updates_prepared": 1, "unresolved_verses": 1, "text_from_fallback": 0}, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	_, err = runner.PDFMerge(context.Background(), PDFMergeOptions{
		ExtractPath:     extract,
		Language:        "id",
		Version:         "TB2",
		FallbackVersion: "TB1",
		Policy:          reconcile.Policy{Text: []reconcile.TextSource{"ocr"}},
		Common:          common(t, true),
	})
	if err == nil {
		t.Error("PDFMerge() with an unknown policy source should fail")
	}
}

func TestPDFMergePolicyListsDefaultSeparately(t *testing.T) {
	repo := openRepo(t)
	seed(t, repo,
		[]bible.Book{book("s-kej", tb1, "Kejadian", 1, 1)},
		[]bible.Chapter{{ID: "s-kej-1", BookID: "s-kej", ChapterNumber: 1}},
		[]bible.Verse{verse("s-kej-1", 1, "Pada mulanya (TB1)", 1, 1), verse("s-kej-1", 2, "Bumi (TB1)", 1, 1)},
	)
	extract := writeFile(t, "tb2.json", `{"Kejadian": {"1": {"1": {"text": "Pada mulanya Allah", "pericope": "Penciptaan"}}}}`)
	runner, _ := newRunner(repo)

	res, err := runner.PDFMerge(context.Background(), PDFMergeOptions{
		ExtractPath:     extract,
		Language:        "id",
		Version:         "TB2",
		FallbackVersion: "TB1",
		Policy:          reconcile.Policy{Pericope: []reconcile.TextSource{reconcile.SourceExisting}},
		Common:          common(t, true),
	})
	if err != nil {
		t.Fatal(err)
	}
	got := pick(res.Report.Summary, "unresolved_verses", "text_from_extract", "text_from_fallback", "pericopes")
	want := map[string]int{"unresolved_verses": 0, "text_from_extract": 1, "text_from_fallback": 1, "pericopes": 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if p := res.Report.Options["policy"]; p != "text=extract>fallback>existing pericope=existing" {
		t.Errorf("policy option = %v", p)
	}
}

func TestPDFMergeUnmatchedExtract(t *testing.T) {
	repo := openRepo(t)
	seed(t, repo,
		[]bible.Book{book("s-kej", tb1, "Kejadian", 1, 1)},
		[]bible.Chapter{{ID: "s-kej-1", BookID: "s-kej", ChapterNumber: 1}},
		[]bible.Verse{verse("s-kej-1", 1, "Pada mulanya (TB1)", 1, 1), verse("s-kej-1", 2, "Bumi (TB1)", 1, 1)},
	)
	extract := writeFile(t, "tb2.json", `{"Kejadian": {
		"1": {"1": {"text": "Pada mulanya Allah"}, "9": {"text": "Ayat lebih"}},
		"2": {"1": {"text": "Demikianlah"}, "2": {"text": "Ketika Allah"}}
	}}`)
	runner, _ := newRunner(repo)

	res, err := runner.PDFMerge(context.Background(), PDFMergeOptions{
		ExtractPath:     extract,
		Language:        "id",
		Version:         "TB2",
		FallbackVersion: "TB1",
		Common:          common(t, true),
	})
	if err != nil {
		t.Fatal(err)
	}
	got := pick(res.Report.Summary, "extract_books_unmatched", "extract_chapters_unmatched", "extract_verses_unmatched", "text_from_extract")
	want := map[string]int{"extract_books_unmatched": 0, "extract_chapters_unmatched": 1, "extract_verses_unmatched": 3, "text_from_extract": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	wantRefs := []reconcile.VerseRef{
		{Book: "Kejadian", Chapter: 1, Verse: 9, Reason: "no workspace verse"},
		{Book: "Kejadian", Chapter: 2, Verse: 1, Reason: "no workspace chapter"},
		{Book: "Kejadian", Chapter: 2, Verse: 2, Reason: "no workspace chapter"},
	}
	if diff := cmp.Diff(wantRefs, res.Report.Samples["extract_verses_unmatched"]); diff != "" {
		t.Errorf("extract_verses_unmatched mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantRefs, res.Report.Samples["unresolved"]); diff != "" {
		t.Errorf("unresolved mismatch (-want +got):\n%s", diff)
	}
	wantChapters := []chapterSample{{Book: "Kejadian", Chapter: "2"}}
	if diff := cmp.Diff(wantChapters, res.Report.Samples["extract_chapters_unmatched"]); diff != "" {
		t.Errorf("extract_chapters_unmatched mismatch (-want +got):\n%s", diff)
	}
}

const genesisOne = `# Genesis

CHAPTER 1

## The Creation

<a name="01001001"></a>1 In the beginning, when God created the heavens and the earth.
<a name="01001002"></a>2 and the earth was without form or shape.

**Section A**

<a name="01001005"></a>5 God called the light "day".

Copyright 2011 Example
`

const estherOne = `CHAPTER 1

## The King's Banquet

<a name="17001001"></a>1 During the reign of Ahasuerus.
`

const estherThree = `CHAPTER A

**Mordecai's Dream**

<a name="17011001"></a>1 In the second year of the reign.
`

func pericopeServer(t *testing.T) *httptest.Server {
	pages := map[string]string{
		"/genesis/1.md": genesisOne,
		"/esther/1.md":  estherOne,
		"/esther/3.md":  estherThree,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seedEnglish(t *testing.T, repo *store.Repository) {
	gen := func(ch, n int, pericope string) bible.Verse {
		v := bible.Verse{ChapterID: fmt.Sprintf("gen-%d", ch), VerseNumber: n, Text: "text", Pericope: pericope}
		return v.WithLegacy(bible.IntPtr(1), ch)
	}
	seed(t, repo,
		[]bible.Book{book("gen", en1, "Genesis", 1, 1), book("est", en1, "Esther", 17, 17)},
		[]bible.Chapter{
			{ID: "gen-1", BookID: "gen", ChapterNumber: 1},
			{ID: "gen-2", BookID: "gen", ChapterNumber: 2},
			{ID: "est-1", BookID: "est", ChapterNumber: 1},
			{ID: "est-11", BookID: "est", ChapterNumber: 11},
		},
		[]bible.Verse{
			gen(1, 1, ""),
			gen(1, 2, ""),
			gen(1, 3, "Old heading"),
			gen(1, 4, ""),
			gen(1, 6, ""),
			gen(2, 1, "Keep me"),
			verse("est-1", 1, "text", 17, 1),
			verse("est-11", 1, "text", 17, 11),
		},
	)
}

func TestPericopeSync(t *testing.T) {
	repo := openRepo(t)
	seedEnglish(t, repo)
	srv := pericopeServer(t)
	runner, out := newRunner(repo)
	ctx := context.Background()
	client := source.NewClient(source.Options{Retries: 1, HTTPClient: srv.Client()})

	opts := PericopeOptions{Language: "en", Version: "EN1", BaseURL: srv.URL + "/", Client: client, Common: common(t, false)}
	res, err := runner.PericopeSync(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	keys := []string{
		"chapters_selected", "pages_requested", "pages_fetched", "source_errors", "missing_sections",
		"chapters_parsed", "headings_found", "fallback_resolved", "unresolved", "updates_prepared", "pericopes_cleared",
	}
	want := map[string]int{
		"chapters_selected": 4, "pages_requested": 12, "pages_fetched": 3, "source_errors": 9, "missing_sections": 0,
		"chapters_parsed": 3, "headings_found": 4, "fallback_resolved": 1, "unresolved": 0, "updates_prepared": 5,
		"pericopes_cleared": 1,
	}
	if diff := cmp.Diff(want, pick(res.Report.Summary, keys...)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	decodeStdout(t, out)

	pericopes := map[string]string{}
	for _, c := range []struct {
		book     string
		ch, v    int
		pericope string
	}{
		{"Genesis", 1, 1, "The Creation"},
		{"Genesis", 1, 3, ""},
		{"Genesis", 1, 6, "Section A"},
		{"Genesis", 2, 1, "Keep me"},
		{"Esther", 1, 1, "The King's Banquet"},
		{"Esther", 11, 1, "Mordecai's Dream"},
	} {
		got := verseText(t, repo, en1, c.book, c.ch, c.v).Pericope
		if got != c.pericope {
			pericopes[fmt.Sprintf("%s %d:%d", c.book, c.ch, c.v)] = got
		}
	}
	if len(pericopes) > 0 {
		t.Errorf("unexpected pericopes: %v", pericopes)
	}

	opts.Common = common(t, false)
	res, err = runner.PericopeSync(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if n := res.Report.Summary["updates_prepared"]; n != 0 {
		t.Errorf("second run prepared %d updates, want 0", n)
	}
	decodeStdout(t, out)
}

func TestPericopeSyncScoped(t *testing.T) {
	repo := openRepo(t)
	seedEnglish(t, repo)
	srv := pericopeServer(t)
	runner, out := newRunner(repo)
	client := source.NewClient(source.Options{Retries: 1, HTTPClient: srv.Client()})

	res, err := runner.PericopeSync(context.Background(), PericopeOptions{
		Language: "en",
		Version:  "EN1",
		BaseURL:  srv.URL,
		Only:     "Genesis 1",
		Client:   client,
		Common:   common(t, true),
	})
	if err != nil {
		t.Fatal(err)
	}
	got := pick(res.Report.Summary, "pages_requested", "source_errors", "updates_prepared")
	if diff := cmp.Diff(map[string]int{"pages_requested": 1, "source_errors": 0, "updates_prepared": 3}, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if s := decodeStdout(t, out); !s.DryRun {
		t.Error("stdout summary should report dry_run")
	}
	if got := verseText(t, repo, en1, "Genesis", 1, 3).Pericope; got != "Old heading" {
		t.Errorf("dry run changed a pericope: %q", got)
	}

	if _, err := runner.PericopeSync(context.Background(), PericopeOptions{Language: "en", Version: "EN1", BaseURL: "ftp://x", Common: common(t, true)}); err == nil {
		t.Error("PericopeSync() with a non-http base URL should fail")
	}
}
