package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veil-sh/veil/internal/anonymize"
	"github.com/veil-sh/veil/internal/detect"
)

func TestRenderEmpty(t *testing.T) {
	assert.Equal(t, "untouched", Render("untouched", nil, Bold))
	assert.Equal(t, "untouched", Render("untouched", []Region{}, Bold))
}

func TestRenderBold(t *testing.T) {
	text := "My name is <PERSON> and my phone number is <PHONE_NUMBER>."
	regions := []Region{
		{Start: 11, End: 19},
		{Start: 43, End: 57},
	}

	got := Render(text, regions, Bold)
	assert.Equal(t, "My name is **<PERSON>** and my phone number is **<PHONE_NUMBER>**.", got)
}

func TestRenderAscendingInputStillCorrect(t *testing.T) {
	// Splicing shifts everything after the insertion point; regions supplied
	// in ascending order must render identically to descending order.
	text := "aa bb cc"
	asc := []Region{{Start: 0, End: 2}, {Start: 3, End: 5}, {Start: 6, End: 8}}
	desc := []Region{{Start: 6, End: 8}, {Start: 3, End: 5}, {Start: 0, End: 2}}

	want := "**aa** **bb** **cc**"
	assert.Equal(t, want, Render(text, asc, Bold))
	assert.Equal(t, want, Render(text, desc, Bold))
}

func TestRenderPure(t *testing.T) {
	text := "one two three"
	regions := []Region{{Start: 4, End: 7}}

	first := Render(text, regions, Bold)
	second := Render(text, regions, Bold)
	assert.Equal(t, first, second)
	// Inputs are untouched.
	assert.Equal(t, "one two three", text)
	assert.Equal(t, []Region{{Start: 4, End: 7}}, regions)
}

func TestRenderTouchingRegions(t *testing.T) {
	text := "abcd"
	regions := []Region{{Start: 0, End: 2}, {Start: 2, End: 4}}

	got := Render(text, regions, Bold)
	assert.Equal(t, "**ab****cd**", got)
}

func TestRenderSkipsInvalidRegions(t *testing.T) {
	text := "short"
	regions := []Region{
		{Start: -1, End: 2},
		{Start: 3, End: 99},
		{Start: 4, End: 2},
		{Start: 0, End: 5},
	}

	got := Render(text, regions, Bold)
	assert.Equal(t, "**short**", got)
}

func TestRenderCustomMarkup(t *testing.T) {
	upper := func(s string) string { return "<em>" + strings.ToUpper(s) + "</em>" }
	got := Render("hide me", []Region{{Start: 5, End: 7}}, upper)
	assert.Equal(t, "hide <em>ME</em>", got)
}

func TestRegionConversions(t *testing.T) {
	items := []anonymize.Item{{Start: 1, End: 3, EntityType: "X"}}
	assert.Equal(t, []Region{{Start: 1, End: 3}}, FromItems(items))

	spans := []detect.Span{{Start: 2, End: 5, EntityType: "Y"}}
	assert.Equal(t, []Region{{Start: 2, End: 5}}, FromSpans(spans))
}
