package export

import (
	"github.com/veil-sh/veil/internal/anonymize"
	"github.com/veil-sh/veil/internal/batch"
)

type fileView struct {
	Text  string           `json:"text"`
	Items []anonymize.Item `json:"items"`
	Error string           `json:"error,omitempty"`
}

type batchView struct {
	Files   map[string]fileView `json:"files"`
	Summary batch.Summary       `json:"summary"`
}

func resultView(res *batch.Result) batchView {
	v := batchView{
		Files:   make(map[string]fileView, len(res.Files)),
		Summary: res.Summary,
	}
	for id, fr := range res.Files {
		fv := fileView{Text: fr.Text, Items: fr.Items}
		if fv.Items == nil {
			fv.Items = []anonymize.Item{}
		}
		if fr.Err != nil {
			fv.Error = fr.Err.Error()
			fv.Text = ""
		}
		v.Files[id] = fv
	}
	return v
}
