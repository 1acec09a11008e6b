// Package export serializes batch results into downloadable artifacts: a
// single text file for one result, a zip archive for several, or JSON for
// machine consumption.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/veil-sh/veil/internal/batch"
)

// File returns the download name and content for a single entry's redacted
// text.
func File(id string, fr batch.FileResult) (name string, data []byte) {
	return entryName(id), []byte(fr.Text)
}

// Archive builds a zip with one entry per successfully processed ID, named
// from the ID. Failed entries are skipped. Entry names that collide after
// sanitization are disambiguated with a numeric suffix. The archive's own
// name carries a random UUID so repeated downloads never clash.
func Archive(res *batch.Result) (name string, data []byte, err error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	used := make(map[string]int)
	for _, id := range res.IDs {
		fr, ok := res.Files[id]
		if !ok || fr.Err != nil {
			continue
		}
		entry := entryName(id)
		if n := used[entry]; n > 0 {
			used[entry] = n + 1
			entry = strings.TrimSuffix(entry, ".txt") + fmt.Sprintf("-%d.txt", n+1)
		}
		used[entry]++

		w, err := zw.Create(entry)
		if err != nil {
			return "", nil, fmt.Errorf("creating zip entry %s: %w", entry, err)
		}
		if _, err := w.Write([]byte(fr.Text)); err != nil {
			return "", nil, fmt.Errorf("writing zip entry %s: %w", entry, err)
		}
	}

	if err := zw.Close(); err != nil {
		return "", nil, fmt.Errorf("closing zip: %w", err)
	}

	return fmt.Sprintf("redacted_files_%s.zip", uuid.NewString()), buf.Bytes(), nil
}

// JSON marshals the full result, including per-file error markers and the
// summary.
func JSON(res *batch.Result) ([]byte, error) {
	return json.MarshalIndent(resultView(res), "", "  ")
}

// entryName derives a flat, collision-prone-but-safe file name from an ID.
// Path separators are flattened so a hostile ID cannot escape the archive
// root.
func entryName(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, "\\", "_")
	id = strings.ReplaceAll(id, "..", "_")
	if id == "" {
		id = "untitled"
	}
	return id + ".txt"
}
