package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-sh/veil/internal/detect"
)

// stubDetector counts Detect invocations and delegates to a configurable
// detect func, so tests can verify short-circuits and failure isolation.
type stubDetector struct {
	mu       sync.Mutex
	calls    int
	entities []string
	detectFn func(text string, categories []string) ([]detect.Span, error)
}

func (s *stubDetector) Detect(_ context.Context, text string, categories []string) ([]detect.Span, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.detectFn == nil {
		return nil, nil
	}
	return s.detectFn(text, categories)
}

func (s *stubDetector) SupportedEntities() []string {
	if s.entities == nil {
		return []string{"PERSON", "EMAIL_ADDRESS", "PHONE_NUMBER"}
	}
	return s.entities
}

func (s *stubDetector) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestProcessEmptyCategoriesNeverCallsDetector(t *testing.T) {
	stub := &stubDetector{}
	p := New(stub)

	entries := []Entry{
		{ID: "a", Text: "user@example.com"},
		{ID: "b", Text: "555-123-4567"},
	}

	result, err := p.Process(context.Background(), entries, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, stub.callCount())
	assert.Equal(t, 0, result.Summary.TotalItems)
	for _, id := range result.IDs {
		fr := result.Files[id]
		assert.NoError(t, fr.Err)
		assert.Empty(t, fr.Items)
	}
	// Texts pass through unchanged.
	assert.Equal(t, "user@example.com", result.Files["a"].Text)
}

func TestProcessWhitespaceTextSkipsDetector(t *testing.T) {
	stub := &stubDetector{}
	p := New(stub)

	entries := []Entry{
		{ID: "empty", Text: ""},
		{ID: "blank", Text: "  \n\t "},
	}

	result, err := p.Process(context.Background(), entries, []string{"PERSON"})
	require.NoError(t, err)

	assert.Equal(t, 0, stub.callCount())
	assert.Equal(t, "", result.Files["empty"].Text)
	assert.Equal(t, "  \n\t ", result.Files["blank"].Text)
}

func TestProcessInvalidCategorySetFailsEagerly(t *testing.T) {
	stub := &stubDetector{}
	p := New(stub)

	_, err := p.Process(context.Background(), []Entry{{ID: "a", Text: "hi"}}, []string{"NOPE"})
	require.Error(t, err)
	assert.ErrorIs(t, err, detect.ErrInvalidCategorySet)
	assert.Equal(t, 0, stub.callCount())
}

func TestProcessRedactsAndSummarizes(t *testing.T) {
	stub := &stubDetector{
		detectFn: func(text string, _ []string) ([]detect.Span, error) {
			idx := strings.Index(text, "Hisham")
			if idx < 0 {
				return nil, nil
			}
			return []detect.Span{{Start: idx, End: idx + 6, EntityType: "PERSON", Score: 0.9}}, nil
		},
	}
	p := New(stub)

	entries := []Entry{
		{ID: "one", Text: "My name is Hisham"},
		{ID: "two", Text: "nothing here"},
	}

	result, err := p.Process(context.Background(), entries, []string{"PERSON"})
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, result.IDs)
	assert.Equal(t, "My name is <PERSON>", result.Files["one"].Text)
	assert.Equal(t, "nothing here", result.Files["two"].Text)
	assert.Equal(t, 1, result.Summary.TotalItems)
	assert.Equal(t, []string{"PERSON"}, result.Summary.EntityTypes)
}

func TestProcessFailureIsolation(t *testing.T) {
	boom := errors.New("recognizer blew up")
	stub := &stubDetector{
		detectFn: func(text string, _ []string) ([]detect.Span, error) {
			if strings.Contains(text, "poison") {
				return nil, boom
			}
			return []detect.Span{{Start: 0, End: 4, EntityType: "EMAIL_ADDRESS", Score: 0.8}}, nil
		},
	}
	p := New(stub)

	entries := []Entry{
		{ID: "1", Text: "good text"},
		{ID: "2", Text: "poison text"},
		{ID: "3", Text: "more text"},
	}

	result, err := p.Process(context.Background(), entries, []string{"EMAIL_ADDRESS"})
	require.NoError(t, err)

	assert.NoError(t, result.Files["1"].Err)
	assert.NoError(t, result.Files["3"].Err)
	require.Error(t, result.Files["2"].Err)
	assert.ErrorIs(t, result.Files["2"].Err, boom)

	// The failed entry contributes nothing to the summary.
	assert.Equal(t, 2, result.Summary.TotalItems)
	assert.Equal(t, []string{"EMAIL_ADDRESS"}, result.Summary.EntityTypes)
}

func TestProcessParallelMatchesSequential(t *testing.T) {
	detectFn := func(text string, _ []string) ([]detect.Span, error) {
		var spans []detect.Span
		for idx := strings.Index(text, "@@"); idx >= 0; {
			spans = append(spans, detect.Span{Start: idx, End: idx + 2, EntityType: "MARKER"})
			next := strings.Index(text[idx+2:], "@@")
			if next < 0 {
				break
			}
			idx = idx + 2 + next
		}
		return spans, nil
	}

	entries := []Entry{
		{ID: "a", Text: "xx @@ yy"},
		{ID: "b", Text: "@@ and @@"},
		{ID: "c", Text: "clean"},
		{ID: "d", Text: "@@"},
	}
	categories := []string{"MARKER"}
	supported := []string{"MARKER"}

	seq := New(&stubDetector{entities: supported, detectFn: detectFn})
	par := New(&stubDetector{entities: supported, detectFn: detectFn}, WithWorkers(4))

	wantResult, err := seq.Process(context.Background(), entries, categories)
	require.NoError(t, err)
	gotResult, err := par.Process(context.Background(), entries, categories)
	require.NoError(t, err)

	assert.Equal(t, wantResult.IDs, gotResult.IDs)
	assert.Equal(t, wantResult.Summary, gotResult.Summary)
	for id := range wantResult.Files {
		assert.Equal(t, wantResult.Files[id].Text, gotResult.Files[id].Text)
		assert.Equal(t, wantResult.Files[id].Items, gotResult.Files[id].Items)
	}
}

func TestProcessProgressCallback(t *testing.T) {
	stub := &stubDetector{}
	var mu sync.Mutex
	var seen []int

	p := New(stub, WithProgress(func(done, total int) {
		mu.Lock()
		seen = append(seen, done)
		mu.Unlock()
		assert.Equal(t, 3, total)
	}))

	entries := []Entry{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	_, err := p.Process(context.Background(), entries, []string{"PERSON"})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(&stubDetector{})
	_, err := p.Process(ctx, []Entry{{ID: "a", Text: "hi"}}, []string{"PERSON"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
