// Package preview renders an annotated display form of a text by wrapping
// matched spans in caller-supplied markup.
package preview

import (
	"sort"

	"github.com/veil-sh/veil/internal/anonymize"
	"github.com/veil-sh/veil/internal/detect"
)

// Region is a half-open range to annotate. Regions must be expressed in the
// same coordinate system as the text being rendered, either original text
// with detected spans or redacted text with anonymized items, never mixed.
type Region struct {
	Start, End int
}

// Markup transforms the matched substring into its annotated form.
type Markup func(string) string

// Bold wraps the match in Markdown emphasis markers.
func Bold(s string) string { return "**" + s + "**" }

// Render returns text with markup applied to every region. Regions are spliced
// in descending Start order so that inserting markup around one region never
// shifts the offsets of regions not yet processed. Note this is the opposite
// of the anonymizer's ascending rewrite pass.
//
// Render is a pure function: identical inputs produce identical output, and
// empty regions return text unchanged. Out-of-bounds or inverted regions are
// skipped. Touching regions (one's End equal to the next's Start) render as
// two separately wrapped matches.
func Render(text string, regions []Region, markup Markup) string {
	if len(regions) == 0 {
		return text
	}

	ordered := make([]Region, len(regions))
	copy(ordered, regions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	for _, reg := range ordered {
		if reg.Start < 0 || reg.End > len(text) || reg.Start > reg.End {
			continue
		}
		text = text[:reg.Start] + markup(text[reg.Start:reg.End]) + text[reg.End:]
	}
	return text
}

// FromItems converts anonymized items to regions in the redacted text's
// coordinate system.
func FromItems(items []anonymize.Item) []Region {
	regions := make([]Region, len(items))
	for i, it := range items {
		regions[i] = Region{Start: it.Start, End: it.End}
	}
	return regions
}

// FromSpans converts detected spans to regions in the original text's
// coordinate system.
func FromSpans(spans []detect.Span) []Region {
	regions := make([]Region, len(spans))
	for i, sp := range spans {
		regions[i] = Region{Start: sp.Start, End: sp.End}
	}
	return regions
}
