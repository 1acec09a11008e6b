package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veil-sh/veil/internal/anonymize"
	"github.com/veil-sh/veil/internal/batch"
	"github.com/veil-sh/veil/internal/detect"
	"github.com/veil-sh/veil/internal/export"
	"github.com/veil-sh/veil/internal/preview"
)

const maxMultipartMemory = 32 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entities": s.detector.SupportedEntities(),
	})
}

type textInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type redactRequest struct {
	Texts []textInput `json:"texts"`
	// Entities nil (field absent) means "use the configured defaults";
	// an explicitly empty list is honored and produces no redactions.
	Entities *[]string `json:"entities"`
	Preview  bool      `json:"preview"`
}

type fileResponse struct {
	Text    string           `json:"text"`
	Items   []anonymize.Item `json:"items"`
	Error   string           `json:"error,omitempty"`
	Preview string           `json:"preview,omitempty"`
}

type redactResponse struct {
	Files   map[string]fileResponse `json:"files"`
	Summary batch.Summary           `json:"summary"`
}

func (s *Server) entitiesFor(req *redactRequest) []string {
	if req.Entities == nil {
		return s.defaultEntities
	}
	return *req.Entities
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "at least one text is required")
		return
	}

	entries := make([]batch.Entry, 0, len(req.Texts))
	for _, t := range req.Texts {
		entries = append(entries, batch.Entry{ID: t.ID, Text: t.Text})
	}

	result, err := s.processor.Process(r.Context(), entries, s.entitiesFor(&req))
	if err != nil {
		s.writeProcessError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.buildResponse(result, req.Preview))
}

func (s *Server) handleRedactFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form: "+err.Error())
		return
	}

	form := r.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	files := form.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "at least one file is required")
		return
	}

	entities := s.defaultEntities
	if vals, ok := form.Value["entities"]; ok {
		entities = vals
	}
	wantPreview := len(form.Value["preview"]) > 0 && form.Value["preview"][0] == "true"

	var entries []batch.Entry
	failed := make(map[string]string)
	for _, fh := range files {
		text, err := s.extractUpload(r, fh.Filename, fh)
		if err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("extraction failed, file excluded from batch")
			failed[fh.Filename] = err.Error()
			continue
		}
		entries = append(entries, batch.Entry{ID: fh.Filename, Text: text})
	}

	result := &batch.Result{Files: make(map[string]batch.FileResult)}
	if len(entries) > 0 {
		var err error
		result, err = s.processor.Process(r.Context(), entries, entities)
		if err != nil {
			s.writeProcessError(w, err)
			return
		}
	}

	resp := s.buildResponse(result, wantPreview)
	for name, msg := range failed {
		resp.Files[name] = fileResponse{Error: msg, Items: []anonymize.Item{}}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "at least one text is required")
		return
	}

	entries := make([]batch.Entry, 0, len(req.Texts))
	for _, t := range req.Texts {
		entries = append(entries, batch.Entry{ID: t.ID, Text: t.Text})
	}

	result, err := s.processor.Process(r.Context(), entries, s.entitiesFor(&req))
	if err != nil {
		s.writeProcessError(w, err)
		return
	}

	if len(result.IDs) == 1 {
		id := result.IDs[0]
		name, data := export.File(id, result.Files[id])
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		_, _ = w.Write(data)
		return
	}

	name, data, err := export.Archive(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	if errors.Is(err, detect.ErrInvalidCategorySet) {
		writeError(w, http.StatusBadRequest, "invalid_category_set", err.Error())
		return
	}
	log.Error().Err(err).Msg("batch processing failed")
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}

func (s *Server) buildResponse(result *batch.Result, wantPreview bool) redactResponse {
	resp := redactResponse{
		Files:   make(map[string]fileResponse, len(result.Files)),
		Summary: result.Summary,
	}
	for id, fr := range result.Files {
		f := fileResponse{Text: fr.Text, Items: fr.Items}
		if f.Items == nil {
			f.Items = []anonymize.Item{}
		}
		if fr.Err != nil {
			f = fileResponse{Error: fr.Err.Error(), Items: []anonymize.Item{}}
		} else if wantPreview {
			f.Preview = preview.Render(fr.Text, preview.FromItems(fr.Items), preview.Bold)
		}
		resp.Files[id] = f
	}
	return resp
}

func (s *Server) extractUpload(r *http.Request, filename string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload %s: %w", filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("reading upload %s: %w", filename, err)
	}
	return s.extractor.Extract(r.Context(), filename, data)
}
