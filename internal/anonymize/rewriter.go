package anonymize

import (
	"sort"
	"strings"
)

// Rewriter applies a set of non-overlapping replacements to a string without
// corrupting later offsets. Replacements are applied in a single left-to-right
// pass; because earlier splices shift everything after them, the position of
// each replacement in the output is recomputed as it is written.
type Rewriter struct {
	splices []splice
}

type splice struct {
	start, end int
	value      string
}

// Placement is the location of one applied replacement, expressed in the
// rewritten text's coordinate system.
type Placement struct {
	Start, End int
}

// Replace schedules the half-open range [start, end) of the original text to
// be replaced with value. Ranges must not overlap.
func (r *Rewriter) Replace(start, end int, value string) {
	r.splices = append(r.splices, splice{start: start, end: end, value: value})
}

// Apply performs all scheduled replacements on text and returns the rewritten
// string plus one Placement per replacement, in ascending order.
func (r *Rewriter) Apply(text string) (string, []Placement) {
	if len(r.splices) == 0 {
		return text, nil
	}

	ordered := make([]splice, len(r.splices))
	copy(ordered, r.splices)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].start < ordered[j].start })

	var b strings.Builder
	placements := make([]Placement, 0, len(ordered))
	cursor := 0
	for _, sp := range ordered {
		b.WriteString(text[cursor:sp.start])
		newStart := b.Len()
		b.WriteString(sp.value)
		placements = append(placements, Placement{Start: newStart, End: b.Len()})
		cursor = sp.end
	}
	b.WriteString(text[cursor:])

	return b.String(), placements
}
