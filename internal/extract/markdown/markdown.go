// Package markdown extracts pericope headings from Markdown-per-chapter Bible
// pages. A page is split into chapter sections, each section is tokenized into
// position-tagged verse and heading tokens, and a separate pass associates
// every heading with the verse it introduces.
package markdown

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/biblesync/core/bible"
)

const (
	// headingLookback is how far before the first verse-1 anchor the
	// fallback section start may reach to include its heading.
	headingLookback = 900

	// associationWindow is the largest distance, in bytes, between a heading
	// and the verse it introduces.
	associationWindow = 1400

	// maxHeadingLen rejects bold runs that are really prose.
	maxHeadingLen = 180
)

var (
	// markerPattern finds "CHAPTER 3", "PSALM 23" and Esther's "CHAPTER A".
	markerPattern = regexp.MustCompile(`(?im)^[ \t#*_>]*(?:CHAPTER|PSALM)[ \t]+([0-9]{1,3}|[A-F])\b[ \t*_#]*$`)

	// markerTitle matches a heading that is only a chapter/psalm marker.
	markerTitle = regexp.MustCompile(`(?i)^(?:CHAPTER|PSALM)\s+\S+$`)

	anchorVerse    = regexp.MustCompile(`<a\s+name="[^"]*"\s*/?>\s*(?:</a>\s*)?(\d{1,3})`)
	lineStartVerse = regexp.MustCompile(`(?m)^[ \t]*(\d{1,3})[ \t]?["'\x{201C}\x{2018}\p{L}]`)
	firstVerse     = regexp.MustCompile(`<a\s+name="[^"]*"\s*/?>\s*(?:</a>\s*)?1\b`)

	atxHeading  = regexp.MustCompile(`(?m)^#{2,6}[ \t]+(.+?)[ \t#]*$`)
	boldHeading = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)

	romanNumeral = regexp.MustCompile(`(?i)^M{0,4}(?:CM|CD|D?C{0,3})(?:XC|XL|L?X{0,3})(?:IX|IV|V?I{0,3})\.?$`)
	htmlTag      = regexp.MustCompile(`<[^>]*>`)
	mdLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)

	trailerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^[ \t]*(?:[*-][ \t]+)?\[(?:\*|[a-z]|\d{1,3})\][ \t]*(?:\(|:)`),
		regexp.MustCompile(`(?im)^[ \t]*(?:#+[ \t]*)?footnotes?\b`),
		regexp.MustCompile(`(?i)copyright[ \t]*(?:\x{00A9}|\(c\)|[0-9]{4})`),
		regexp.MustCompile(`(?im)^[ \t]*(?:\[)?(?:\x{00AB}[ \t]*)?(?:previous|prev|next)[ \t]+(?:chapter|page)\b`),
		regexp.MustCompile(`(?im)^[ \t]*page[ \t]+\d+[ \t]+of[ \t]+\d+`),
	}
)

// Section is one chapter's slice of a fetched page.
type Section struct {
	// Label is the marker's chapter label ("3", "A"), empty for a page
	// without markers.
	Label string

	// Start is the byte offset of the section in the page.
	Start int

	// Text is the section body, trailer not yet removed.
	Text string
}

// VerseToken marks where a verse begins.
type VerseToken struct {
	Pos   int
	Verse int
}

// HeadingToken is a candidate pericope heading.
type HeadingToken struct {
	Pos   int
	Title string
}

// Heading is a pericope title and the verse it introduces.
type Heading struct {
	Verse int    `json:"verse"`
	Title string `json:"title"`
}

// Chapter holds the headings found in one section.
type Chapter struct {
	Label    string
	Headings []Heading
}

// SplitSections splits a page at CHAPTER/PSALM markers. A page without
// markers yields a single unlabelled section starting at the first verse-1
// anchor, pulled back to the nearest heading within headingLookback bytes.
// A page with neither yields nil.
func SplitSections(doc string) []Section {
	marks := markerPattern.FindAllStringSubmatchIndex(doc, -1)
	if len(marks) == 0 {
		start, ok := fallbackStart(doc)
		if !ok {
			return nil
		}
		return []Section{{Start: start, Text: doc[start:]}}
	}

	sections := make([]Section, 0, len(marks))
	for i, m := range marks {
		end := len(doc)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		sections = append(sections, Section{
			Label: strings.ToUpper(doc[m[2]:m[3]]),
			Start: m[0],
			Text:  doc[m[0]:end],
		})
	}
	return sections
}

func fallbackStart(doc string) (int, bool) {
	loc := firstVerse.FindStringIndex(doc)
	if loc == nil {
		return 0, false
	}
	anchor := loc[0]
	lo := anchor - headingLookback
	if lo < 0 {
		lo = 0
	}
	window := doc[lo:anchor]

	best := -1
	for _, re := range []*regexp.Regexp{atxHeading, boldHeading} {
		for _, m := range re.FindAllStringIndex(window, -1) {
			if m[0] > best {
				best = m[0]
			}
		}
	}
	if best < 0 {
		return anchor, true
	}
	return lo + best, true
}

// CutTrailer drops footnotes, copyright lines and pagination from the end of
// a section by cutting at the earliest trailer match.
func CutTrailer(s string) string {
	cut := len(s)
	for _, re := range trailerPatterns {
		if loc := re.FindStringIndex(s); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	return s[:cut]
}

// VerseTokens finds verse starts by HTML anchor and by line-start number,
// sorted by position and deduplicated on (position, verse).
func VerseTokens(s string) []VerseToken {
	seen := make(map[VerseToken]bool)
	var out []VerseToken
	add := func(pos int, num string) {
		n, err := strconv.Atoi(num)
		if err != nil || n <= 0 {
			return
		}
		t := VerseToken{Pos: pos, Verse: n}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, m := range anchorVerse.FindAllStringSubmatchIndex(s, -1) {
		add(m[0], s[m[2]:m[3]])
	}
	for _, m := range lineStartVerse.FindAllStringSubmatchIndex(s, -1) {
		add(m[2], s[m[2]:m[3]])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos != out[j].Pos {
			return out[i].Pos < out[j].Pos
		}
		return out[i].Verse < out[j].Verse
	})
	return out
}

// HeadingTokens finds ATX headings and bold spans that look like content
// headings, sorted by position.
func HeadingTokens(s string) []HeadingToken {
	var out []HeadingToken
	for _, re := range []*regexp.Regexp{atxHeading, boldHeading} {
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			title := cleanHeading(s[m[2]:m[3]])
			if !isContentHeading(title) {
				continue
			}
			out = append(out, HeadingToken{Pos: m[0], Title: title})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })

	// A bold span inside an ATX heading is the same heading twice.
	deduped := out[:0]
	for _, h := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Title == h.Title && h.Pos-deduped[n-1].Pos <= len(h.Title)+8 {
			continue
		}
		deduped = append(deduped, h)
	}
	return deduped
}

func cleanHeading(s string) string {
	s = mdLink.ReplaceAllString(s, "$1")
	s = htmlTag.ReplaceAllString(s, "")
	s = strings.NewReplacer("**", "", "__", "", "*", "", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func isContentHeading(title string) bool {
	if title == "" || len(title) > maxHeadingLen {
		return false
	}
	if markerTitle.MatchString(title) || romanNumeral.MatchString(title) {
		return false
	}
	for _, r := range title {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Associate pairs each heading with the nearest verse token after it, when
// that token is within associationWindow bytes. If several headings land on
// one verse the last of them wins. The result is sorted by verse.
func Associate(headings []HeadingToken, verses []VerseToken) []Heading {
	byVerse := make(map[int]string)
	for _, h := range headings {
		i := sort.Search(len(verses), func(i int) bool { return verses[i].Pos > h.Pos })
		if i == len(verses) {
			continue
		}
		v := verses[i]
		if v.Pos-h.Pos > associationWindow {
			continue
		}
		byVerse[v.Verse] = h.Title
	}

	out := make([]Heading, 0, len(byVerse))
	for n, title := range byVerse {
		out = append(out, Heading{Verse: n, Title: title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verse < out[j].Verse })
	return out
}

// ExtractSection runs trailer cutting, tokenizing and association over one
// section's text.
func ExtractSection(text string) []Heading {
	body := CutTrailer(text)
	return Associate(HeadingTokens(body), VerseTokens(body))
}

// Parse extracts every section of a page.
func Parse(doc string) []Chapter {
	sections := SplitSections(doc)
	out := make([]Chapter, 0, len(sections))
	for _, s := range sections {
		out = append(out, Chapter{Label: s.Label, Headings: ExtractSection(s.Text)})
	}
	return out
}

// FindChapter returns the headings for the section whose label matches
// label. An unlabelled single-section page matches any label.
func FindChapter(chapters []Chapter, label string) ([]Heading, bool) {
	label = strings.ToUpper(label)
	for _, c := range chapters {
		if c.Label == label {
			return c.Headings, true
		}
	}
	if len(chapters) == 1 && chapters[0].Label == "" {
		return chapters[0].Headings, true
	}
	return nil, false
}

// ChapterNumber maps a section label to a stored chapter number. Letters are
// only meaningful for Esther.
func ChapterNumber(bookName, label string) (int, bool) {
	if n, err := strconv.Atoi(label); err == nil && n > 0 {
		return n, true
	}
	if bible.IsEsther(bookName) {
		return bible.ChapterForLetter(label)
	}
	return 0, false
}

// ClassifyEstherPages merges the sections of Esther's numbered pages by
// label. The source's page numbers do not line up with the lettered
// additions, so each section is placed by its own marker. When a label
// appears on more than one page the first occurrence with headings wins.
func ClassifyEstherPages(pages map[int]string) map[int][]Heading {
	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	out := make(map[int][]Heading)
	for _, page := range nums {
		for _, ch := range Parse(pages[page]) {
			label := ch.Label
			if label == "" {
				label = strconv.Itoa(page)
			}
			n, ok := ChapterNumber("Esther", label)
			if !ok {
				continue
			}
			if existing, seen := out[n]; seen && len(existing) > 0 {
				continue
			}
			out[n] = ch.Headings
		}
	}
	return out
}
