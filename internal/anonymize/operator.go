// Package anonymize turns detected spans into a redacted text plus a
// normalized record of every applied replacement.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Item is one applied redaction. Start and End are half-open offsets in the
// ANONYMIZED text's own coordinate system, not the original: replacement text
// may differ in length from the source span. Slicing the redacted text with
// them yields exactly the replacement value that was written.
type Item struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score,omitempty"`
}

// Operator produces the replacement value for one matched span.
type Operator interface {
	Apply(entityType, value string) string
}

// Replace substitutes a fixed value. An empty Value falls back to the
// bracketed entity type placeholder (e.g. "<PERSON>"), Presidio's default.
type Replace struct {
	Value string
}

func (r Replace) Apply(entityType, _ string) string {
	if r.Value != "" {
		return r.Value
	}
	return "<" + entityType + ">"
}

// Mask overwrites CharsToMask characters with Char, from the start or, when
// FromEnd is set, from the end. CharsToMask <= 0 masks the whole value.
type Mask struct {
	Char        byte
	CharsToMask int
	FromEnd     bool
}

func (m Mask) Apply(_, value string) string {
	ch := m.Char
	if ch == 0 {
		ch = '*'
	}
	n := m.CharsToMask
	if n <= 0 || n > len(value) {
		n = len(value)
	}
	masked := strings.Repeat(string(ch), n)
	if m.FromEnd {
		return value[:len(value)-n] + masked
	}
	return masked + value[n:]
}

// Redact removes the matched value entirely.
type Redact struct{}

func (Redact) Apply(_, _ string) string { return "" }

// Hash replaces the value with a hex-encoded SHA-256 digest, truncated to
// Length characters (default 16). Equal inputs hash equally, so repeated
// occurrences of one value stay correlatable across a document.
type Hash struct {
	Length int
}

func (h Hash) Apply(_, value string) string {
	sum := sha256.Sum256([]byte(value))
	hexed := hex.EncodeToString(sum[:])
	n := h.Length
	if n <= 0 || n > len(hexed) {
		n = 16
	}
	return hexed[:n]
}

// Policy maps an entity type to its replacement operator. Entity types with
// no entry use the default Replace placeholder.
type Policy map[string]Operator

// OperatorFor returns the configured operator for entityType, falling back to
// the default Replace placeholder.
func (p Policy) OperatorFor(entityType string) Operator {
	if op, ok := p[entityType]; ok && op != nil {
		return op
	}
	return Replace{}
}
