// Package batch runs the detect-anonymize pipeline over a named collection of
// texts and aggregates per-text results with summary statistics.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veil-sh/veil/internal/anonymize"
	"github.com/veil-sh/veil/internal/detect"
	veilotel "github.com/veil-sh/veil/internal/otel"
)

var tracer = veilotel.Tracer("github.com/veil-sh/veil/internal/batch")

// Entry is one input text with its caller-chosen identifier (a filename for
// uploaded documents, or a fixed id for manual input). Batch order follows
// the slice order.
type Entry struct {
	ID   string
	Text string
}

// FileResult is the outcome for one entry. When Err is nil, Text holds the
// redacted text and Items the applied replacements. When Err is set, the
// entry failed detection and Text/Items are empty; the rest of the batch is
// unaffected.
type FileResult struct {
	Text  string
	Items []anonymize.Item
	Err   error
}

// Summary aggregates completed FileResults: the total item count and the
// sorted distinct entity types encountered (case-sensitive). Failed entries
// contribute nothing.
type Summary struct {
	TotalItems  int      `json:"total_items"`
	EntityTypes []string `json:"entity_types"`
}

// Result maps each entry ID to its FileResult, preserving the caller-supplied
// order in IDs. Owned by the caller for the duration of one request; not
// persisted.
type Result struct {
	IDs     []string
	Files   map[string]FileResult
	Summary Summary
}

// Processor runs the pipeline. Immutable after construction; safe for
// concurrent use when its Detector is.
type Processor struct {
	detector detect.Detector
	policy   anonymize.Policy
	workers  int
	progress func(done, total int)
}

// Option configures a Processor.
type Option func(*Processor)

// WithPolicy sets the replacement policy (default: placeholder replace).
func WithPolicy(p anonymize.Policy) Option {
	return func(pr *Processor) { pr.policy = p }
}

// WithWorkers bounds per-entry parallelism. Values below 2 keep processing
// sequential. Only set this when the Detector is safe for concurrent calls;
// the built-in Scanner is.
func WithWorkers(n int) Option {
	return func(pr *Processor) { pr.workers = n }
}

// WithProgress registers a callback invoked after each entry completes with
// the number of completed entries and the batch size.
func WithProgress(fn func(done, total int)) Option {
	return func(pr *Processor) { pr.progress = fn }
}

// New creates a Processor around a Detector.
func New(d detect.Detector, opts ...Option) *Processor {
	p := &Processor{detector: d, workers: 1}
	for _, o := range opts {
		o(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// Process runs the pipeline over entries with one shared category set.
//
// Unknown categories fail the whole batch up front (caller configuration
// error). After that, per-entry failures never abort the batch: the failing
// ID carries its error in the FileResult and processing continues. Entries
// whose text is empty or whitespace-only short-circuit to an unchanged text
// with no items, without invoking the Detector at all. The batch owns this
// check rather than relying on the Detector's own no-op behavior.
func (p *Processor) Process(ctx context.Context, entries []Entry, categories []string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "batch.process")
	defer span.End()

	if err := detect.ValidateCategories(categories, p.detector.SupportedEntities()); err != nil {
		return nil, err
	}

	result := &Result{
		IDs:   make([]string, 0, len(entries)),
		Files: make(map[string]FileResult, len(entries)),
	}
	for _, e := range entries {
		result.IDs = append(result.IDs, e.ID)
	}

	total := len(entries)
	if p.workers > 1 {
		if err := p.processParallel(ctx, entries, categories, result); err != nil {
			return nil, err
		}
	} else {
		done := 0
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			result.Files[e.ID] = p.processOne(ctx, e, categories)
			done++
			if p.progress != nil {
				p.progress(done, total)
			}
		}
	}

	result.Summary = summarize(result)

	span.SetAttributes(
		attribute.Int("batch.size", total),
		attribute.Int("batch.total_items", result.Summary.TotalItems),
	)
	return result, nil
}

func (p *Processor) processParallel(ctx context.Context, entries []Entry, categories []string, result *Result) error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done int
	)
	sem := make(chan struct{}, p.workers)
	total := len(entries)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(e Entry) {
			defer wg.Done()
			defer func() { <-sem }()
			fr := p.processOne(ctx, e, categories)
			mu.Lock()
			result.Files[e.ID] = fr
			done++
			if p.progress != nil {
				p.progress(done, total)
			}
			mu.Unlock()
		}(e)
	}
	wg.Wait()
	return ctx.Err()
}

func (p *Processor) processOne(ctx context.Context, e Entry, categories []string) FileResult {
	if len(categories) == 0 || strings.TrimSpace(e.Text) == "" {
		return FileResult{Text: e.Text}
	}

	spans, err := p.detector.Detect(ctx, e.Text, categories)
	if err != nil {
		log.Error().Err(err).Str("file_id", e.ID).Func(veilotel.LogTraceFields(ctx)).Msg("detection failed")
		return FileResult{Err: fmt.Errorf("detecting %s: %w", e.ID, err)}
	}

	redacted, items := anonymize.Anonymize(e.Text, spans, p.policy)
	return FileResult{Text: redacted, Items: items}
}

func summarize(result *Result) Summary {
	s := Summary{}
	seen := make(map[string]bool)
	counted := make(map[string]bool)
	for _, id := range result.IDs {
		fr, ok := result.Files[id]
		if !ok || fr.Err != nil || counted[id] {
			continue
		}
		counted[id] = true
		s.TotalItems += len(fr.Items)
		for _, it := range fr.Items {
			if !seen[it.EntityType] {
				seen[it.EntityType] = true
				s.EntityTypes = append(s.EntityTypes, it.EntityType)
			}
		}
	}
	sort.Strings(s.EntityTypes)
	return s
}
