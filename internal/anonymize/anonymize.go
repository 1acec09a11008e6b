package anonymize

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/veil-sh/veil/internal/detect"
)

// Anonymize replaces every accepted span in text according to policy and
// returns the redacted text plus one Item per applied replacement, ordered by
// position in the redacted text.
//
// Spans are processed in ascending Start order with ties broken by descending
// length, so a match fully containing a shorter sub-match at the same offset
// wins. A span overlapping an already-accepted one is dropped
// (first-accepted-wins), which keeps the accepted set non-overlapping and the
// result independent of the input span order.
//
// A span with Start > End or offsets outside the text is an internal
// consistency defect, not user input: it is excluded with an error log and
// never silently clamped.
func Anonymize(text string, spans []detect.Span, policy Policy) (string, []Item) {
	if len(spans) == 0 {
		return text, nil
	}

	valid := make([]detect.Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Start < 0 || sp.End > len(text) || sp.Start >= sp.End {
			log.Error().
				Int("start", sp.Start).
				Int("end", sp.End).
				Str("entity_type", sp.EntityType).
				Int("text_len", len(text)).
				Msg("offset invariant violation: span excluded")
			continue
		}
		valid = append(valid, sp)
	}
	if len(valid) == 0 {
		return text, nil
	}

	// Deterministic total order: start asc, length desc, then score desc and
	// entity type asc so shuffled input yields identical output.
	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		lenI := valid[i].End - valid[i].Start
		lenJ := valid[j].End - valid[j].Start
		if lenI != lenJ {
			return lenI > lenJ
		}
		if valid[i].Score != valid[j].Score {
			return valid[i].Score > valid[j].Score
		}
		return valid[i].EntityType < valid[j].EntityType
	})

	accepted := valid[:0:0]
	lastEnd := -1
	for _, sp := range valid {
		if sp.Start < lastEnd {
			continue
		}
		accepted = append(accepted, sp)
		lastEnd = sp.End
	}

	var rw Rewriter
	for _, sp := range accepted {
		op := policy.OperatorFor(sp.EntityType)
		rw.Replace(sp.Start, sp.End, op.Apply(sp.EntityType, text[sp.Start:sp.End]))
	}
	redacted, placements := rw.Apply(text)

	items := make([]Item, len(accepted))
	for i, sp := range accepted {
		items[i] = Item{
			Start:      placements[i].Start,
			End:        placements[i].End,
			EntityType: sp.EntityType,
			Score:      sp.Score,
		}
	}

	return redacted, items
}
