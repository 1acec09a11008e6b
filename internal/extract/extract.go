// Package extract converts uploaded document bytes into plain text suitable
// for the detection pipeline, one logical line per extracted element.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"

	veilotel "github.com/veil-sh/veil/internal/otel"
)

var tracer = veilotel.Tracer("github.com/veil-sh/veil/internal/extract")

// ErrUnsupportedFormat marks a file extension no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// SupportedExtensions lists the file extensions Extract can handle.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// IsSupported reports whether the filename's extension has an extractor.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extractor extracts text content from various file formats.
type Extractor struct {
	maxSize int64
}

// NewExtractor creates a file content extractor with a size limit in MB.
func NewExtractor(maxSizeMB int) *Extractor {
	return &Extractor{maxSize: int64(maxSizeMB) * 1024 * 1024}
}

// Extract converts the raw file bytes to plain text based on the filename's
// extension hint. Failures are per-file: callers exclude the file from the
// batch rather than letting corrupt content enter it.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	_, span := tracer.Start(ctx, "extract.file")
	defer span.End()

	if int64(len(data)) > e.maxSize {
		return "", fmt.Errorf("file %s: size %d exceeds limit %d bytes", filename, len(data), e.maxSize)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	span.SetAttributes(attribute.String("extract.extension", ext))

	switch ext {
	case ".txt", ".md", ".csv":
		return string(data), nil

	case ".html", ".htm":
		p := bluemonday.StrictPolicy()
		return p.Sanitize(string(data)), nil

	case ".pdf":
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("extracting pdf %s: %w", filename, err)
		}
		return text, nil

	case ".docx":
		text, err := extractDOCX(data)
		if err != nil {
			return "", fmt.Errorf("extracting docx %s: %w", filename, err)
		}
		return text, nil

	default:
		return "", fmt.Errorf("file %s: %w: %s", filename, ErrUnsupportedFormat, ext)
	}
}
