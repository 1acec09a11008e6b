package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-sh/veil/internal/anonymize"
	"github.com/veil-sh/veil/internal/batch"
)

func TestFile(t *testing.T) {
	name, data := File("report", batch.FileResult{Text: "redacted body"})
	assert.Equal(t, "report.txt", name)
	assert.Equal(t, "redacted body", string(data))
}

func TestFileSanitizesName(t *testing.T) {
	name, _ := File("../../etc/passwd", batch.FileResult{})
	assert.NotContains(t, name, "..")
	assert.NotContains(t, name, "/")
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = string(content)
	}
	return entries
}

func TestArchive(t *testing.T) {
	res := &batch.Result{
		IDs: []string{"a", "b"},
		Files: map[string]batch.FileResult{
			"a": {Text: "first"},
			"b": {Text: "second"},
		},
	}

	name, data, err := Archive(res)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(name, "redacted_files_"))
	assert.True(t, strings.HasSuffix(name, ".zip"))

	entries := readArchive(t, data)
	assert.Equal(t, map[string]string{
		"a.txt": "first",
		"b.txt": "second",
	}, entries)
}

func TestArchiveSkipsFailedEntries(t *testing.T) {
	res := &batch.Result{
		IDs: []string{"ok", "bad"},
		Files: map[string]batch.FileResult{
			"ok":  {Text: "fine"},
			"bad": {Err: errors.New("detection failed")},
		},
	}

	_, data, err := Archive(res)
	require.NoError(t, err)

	entries := readArchive(t, data)
	assert.Equal(t, map[string]string{"ok.txt": "fine"}, entries)
}

func TestArchiveDisambiguatesCollidingNames(t *testing.T) {
	// Two distinct IDs flatten to the same entry name.
	res := &batch.Result{
		IDs: []string{"dir/doc", "dir\\doc"},
		Files: map[string]batch.FileResult{
			"dir/doc":  {Text: "one"},
			"dir\\doc": {Text: "two"},
		},
	}

	_, data, err := Archive(res)
	require.NoError(t, err)

	entries := readArchive(t, data)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries["dir_doc.txt"])
	assert.Equal(t, "two", entries["dir_doc-2.txt"])
}

func TestJSON(t *testing.T) {
	res := &batch.Result{
		IDs: []string{"a", "b"},
		Files: map[string]batch.FileResult{
			"a": {
				Text:  "hello <PERSON>",
				Items: []anonymize.Item{{Start: 6, End: 14, EntityType: "PERSON", Score: 0.9}},
			},
			"b": {Err: errors.New("boom")},
		},
		Summary: batch.Summary{TotalItems: 1, EntityTypes: []string{"PERSON"}},
	}

	data, err := JSON(res)
	require.NoError(t, err)

	var decoded struct {
		Files map[string]struct {
			Text  string           `json:"text"`
			Items []anonymize.Item `json:"items"`
			Error string           `json:"error"`
		} `json:"files"`
		Summary batch.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "hello <PERSON>", decoded.Files["a"].Text)
	require.Len(t, decoded.Files["a"].Items, 1)
	assert.Equal(t, "PERSON", decoded.Files["a"].Items[0].EntityType)

	assert.Equal(t, "boom", decoded.Files["b"].Error)
	assert.Empty(t, decoded.Files["b"].Text)
	assert.NotNil(t, decoded.Files["b"].Items)

	assert.Equal(t, 1, decoded.Summary.TotalItems)
	assert.Equal(t, []string{"PERSON"}, decoded.Summary.EntityTypes)
}
