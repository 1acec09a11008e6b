// Package detect finds sensitive spans (PII) in text using configurable
// regex recognizers compatible with the Presidio YAML registry format.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Span is a detected candidate PII match. Start and End are half-open byte
// offsets into the original text (0 <= Start < End <= len(text)). Spans from
// one detection call may overlap; deduplication is the anonymizer's job.
type Span struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score,omitempty"`
}

// Detector produces Spans for the requested entity categories. Implementations
// must return an empty result for an empty category set without running any
// recognizer, and must expose their supported category labels so callers can
// validate a request up front. No ordering guarantee on the returned spans.
type Detector interface {
	Detect(ctx context.Context, text string, categories []string) ([]Span, error)
	SupportedEntities() []string
}

// ErrInvalidCategorySet marks a request for entity categories the detector
// does not recognize. Checked eagerly, before any per-text work.
var ErrInvalidCategorySet = errors.New("invalid category set")

// ValidateCategories returns an error wrapping ErrInvalidCategorySet when any
// requested category is not in supported. An empty request is valid (no-op).
func ValidateCategories(requested, supported []string) error {
	known := make(map[string]bool, len(supported))
	for _, s := range supported {
		known[s] = true
	}
	var unknown []string
	for _, c := range requested {
		if !known[c] {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown categories [%s]", ErrInvalidCategorySet, strings.Join(unknown, ", "))
	}
	return nil
}
