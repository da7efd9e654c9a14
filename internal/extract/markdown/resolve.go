package markdown

import "sort"

// Resolution places an extracted heading on an existing verse.
type Resolution struct {
	Heading

	// Target is the verse number the heading is written to.
	Target int `json:"target_verse"`

	// Fallback is set when Target differs from the requested verse.
	Fallback bool `json:"fallback"`
}

// ResolveHeadings maps headings onto the verse numbers that exist in the
// target chapter. A missing verse falls back to the nearest verse at or after
// it, else to the chapter's last verse. Headings are returned unresolved only
// when the chapter has no verses at all. When two headings resolve to the
// same verse an exact match beats a fallback, and otherwise the later heading
// wins.
func ResolveHeadings(headings []Heading, existing []int) (resolved []Resolution, unresolved []Heading) {
	nums := make([]int, 0, len(existing))
	have := make(map[int]bool, len(existing))
	for _, n := range existing {
		if n > 0 && !have[n] {
			have[n] = true
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	if len(nums) == 0 {
		return nil, append(unresolved, headings...)
	}

	byTarget := make(map[int]Resolution)
	for _, h := range headings {
		r := Resolution{Heading: h, Target: h.Verse}
		if !have[h.Verse] {
			i := sort.SearchInts(nums, h.Verse)
			if i == len(nums) {
				i = len(nums) - 1
			}
			r.Target = nums[i]
			r.Fallback = true
		}
		if prev, ok := byTarget[r.Target]; ok && !prev.Fallback && r.Fallback {
			continue
		}
		byTarget[r.Target] = r
	}

	resolved = make([]Resolution, 0, len(byTarget))
	for _, r := range byTarget {
		resolved = append(resolved, r)
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Target < resolved[j].Target })
	return resolved, nil
}
