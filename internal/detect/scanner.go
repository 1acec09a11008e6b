package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	veilotel "github.com/veil-sh/veil/internal/otel"
	"github.com/veil-sh/veil/patterns"
)

var tracer = veilotel.Tracer("github.com/veil-sh/veil/internal/detect")

const (
	// DefaultMinScore is the Presidio-compatible minimum confidence threshold.
	// Matches below this score are discarded unless boosted by context words.
	DefaultMinScore = 0.5

	// ContextSimilarityFactor is the score boost applied when context words are
	// found near a match. Matches Presidio's default context_similarity_factor.
	ContextSimilarityFactor = 0.35

	// ContextWindowChars is the number of characters to search before and after
	// a match when looking for context words.
	ContextWindowChars = 100
)

// Scanner is the built-in Detector. It is immutable after construction and
// safe for concurrent use.
type Scanner struct {
	patterns []recognizerPattern
	entities []string
	minScore float64
}

// ScannerOption configures a Scanner via the functional options pattern.
type ScannerOption func(*scannerConfig)

type scannerConfig struct {
	patternFile       string
	enabledEntities   []string
	disabledEntities  []string
	customRecognizers []RecognizerConfig
	minScore          float64
}

// WithMinScore overrides the default minimum confidence threshold for matches.
func WithMinScore(score float64) ScannerOption {
	return func(c *scannerConfig) { c.minScore = score }
}

// WithPatternFile loads additional recognizers from a recognizer YAML file.
// If the file does not exist, it is silently skipped.
func WithPatternFile(path string) ScannerOption {
	return func(c *scannerConfig) { c.patternFile = path }
}

// WithEnabledEntities sets a whitelist of entity types. When non-empty, only
// recognizers with a matching supported_entity will be active.
func WithEnabledEntities(entities []string) ScannerOption {
	return func(c *scannerConfig) { c.enabledEntities = entities }
}

// WithDisabledEntities sets a blacklist of entity types to exclude.
func WithDisabledEntities(entities []string) ScannerOption {
	return func(c *scannerConfig) { c.disabledEntities = entities }
}

// WithCustomRecognizers adds per-caller recognizer definitions, overriding
// defaults that share the same name.
func WithCustomRecognizers(recognizers []RecognizerConfig) ScannerOption {
	return func(c *scannerConfig) { c.customRecognizers = recognizers }
}

// DefaultRecognizers returns the built-in recognizers parsed from the embedded
// pii_default.yaml file. This is the first layer in the merge chain.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.PIIDefaultYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded PII patterns: %w", err)
	}
	return rf.Recognizers, nil
}

// NewScanner creates a Scanner. Without options it uses the embedded defaults.
// Options layer a global pattern file and per-caller customization on top.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	var cfg scannerConfig
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, fmt.Errorf("loading default recognizers: %w", err)
	}

	var globalRecs []*RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading global pattern file: %w", err)
		}
		if rf != nil {
			globalRecs = toPtrSlice(rf.Recognizers)
		}
	}

	var customRecs []*RecognizerConfig
	if len(cfg.customRecognizers) > 0 {
		customRecs = toPtrSlice(cfg.customRecognizers)
	}

	merged := MergeRecognizers(toPtrSlice(defaults), globalRecs, customRecs)
	merged = FilterByEntities(merged, cfg.enabledEntities, cfg.disabledEntities)

	compiled, err := CompilePatterns(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling patterns: %w", err)
	}

	minScore := DefaultMinScore
	if cfg.minScore > 0 {
		minScore = cfg.minScore
	}

	return &Scanner{
		patterns: compiled,
		entities: distinctEntities(compiled),
		minScore: minScore,
	}, nil
}

// MustNewScanner is like NewScanner but panics on error. Useful for
// zero-config startup where the embedded defaults are expected to compile.
func MustNewScanner(opts ...ScannerOption) *Scanner {
	s, err := NewScanner(opts...)
	if err != nil {
		panic(fmt.Sprintf("detect.NewScanner: %v", err))
	}
	return s
}

// SupportedEntities returns the sorted distinct entity types this scanner can
// detect.
func (s *Scanner) SupportedEntities() []string {
	out := make([]string, len(s.entities))
	copy(out, s.entities)
	return out
}

// Detect scans text for the requested entity categories and returns the raw
// matched spans, unordered and possibly overlapping.
//
// An empty category set returns nil without running any recognizer. Some
// detector stacks treat an empty set as "all categories"; the short-circuit is
// enforced here so no caller can trip over that. Empty or whitespace-only text
// also returns nil.
func (s *Scanner) Detect(ctx context.Context, text string, categories []string) ([]Span, error) {
	_, span := tracer.Start(ctx, "detect.scan")
	defer span.End()

	if len(categories) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := ValidateCategories(categories, s.entities); err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(categories))
	for _, c := range categories {
		requested[c] = true
	}

	var spans []Span
	for _, pattern := range s.patterns {
		if !requested[pattern.EntityType] {
			continue
		}
		matches := pattern.Pattern.FindAllStringSubmatchIndex(text, -1)
		for _, match := range matches {
			start, end := match[0], match[1]
			// A single capturing group narrows the reported span (used by
			// recognizers that anchor on surrounding words).
			if len(match) >= 4 && match[2] >= 0 {
				start, end = match[2], match[3]
			}
			value := text[start:end]

			// Hard validation gate: IBAN checksum + country length
			if pattern.ValidateIBAN {
				clean := strings.ReplaceAll(value, " ", "")
				if !validateIBANLength(clean) || !validateIBANChecksum(clean) {
					continue
				}
			}

			// Hard validation gate: Luhn checksum for credit cards
			if pattern.ValidateLuhn {
				if !luhnValid(stripNonDigits(value)) {
					continue
				}
			}

			score := enhanceScoreWithContext(text, start, pattern.Score, pattern.ContextWords)
			if score > 1.0 {
				score = 1.0
			}
			if score < s.minScore {
				continue
			}

			spans = append(spans, Span{
				Start:      start,
				End:        end,
				EntityType: pattern.EntityType,
				Score:      score,
			})
		}
	}

	span.SetAttributes(
		attribute.Int("detect.span_count", len(spans)),
		attribute.Int("detect.category_count", len(categories)),
	)

	return spans, nil
}

// enhanceScoreWithContext boosts a match's base score if context words are
// found within +/- ContextWindowChars characters of the match position. This
// mirrors Presidio's LemmaContextAwareEnhancer with a fixed similarity factor.
func enhanceScoreWithContext(text string, position int, baseScore float64, contextWords []string) float64 {
	if len(contextWords) == 0 {
		return baseScore
	}
	start := position - ContextWindowChars
	if start < 0 {
		start = 0
	}
	end := position + ContextWindowChars
	if end > len(text) {
		end = len(text)
	}
	window := strings.ToLower(text[start:end])

	for _, cw := range contextWords {
		if strings.Contains(window, strings.ToLower(cw)) {
			return baseScore + ContextSimilarityFactor
		}
	}
	return baseScore
}

func distinctEntities(compiled []recognizerPattern) []string {
	seen := make(map[string]bool)
	var entities []string
	for _, p := range compiled {
		if !seen[p.EntityType] {
			seen[p.EntityType] = true
			entities = append(entities, p.EntityType)
		}
	}
	sort.Strings(entities)
	return entities
}
