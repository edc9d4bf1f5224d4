package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"cogniquery/internal/models"
	"cogniquery/internal/parser"
	"cogniquery/internal/rag"
	"cogniquery/internal/store"
)

const (
	msgProcessFailed     = "failed to process the provided data"
	msgProcessDataFirst  = "please process data first"
	msgInternalError     = "internal error"
	msgQuestionRequired  = "question is required"
	msgFileOrURLRequired = "a file upload or a url is required"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.CreateSession(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("create session failed")
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": session.ID})
}

// handleProcess ingests one source (multipart file upload or JSON url) and
// replaces the session's knowledge base with an index over it. A successful
// build clears the conversation history.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.sessions.GetSession(r.Context(), sessionID); err != nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	assetDir := filepath.Join(s.cfg.Server.DataDir, "assets", sessionID)
	// Visual assets only live until indexing finishes.
	defer os.RemoveAll(assetDir)

	pages, ok := s.extractSource(w, r, sessionID, assetDir)
	if !ok {
		return
	}
	if len(pages) == 0 {
		jsonError(w, msgProcessFailed, http.StatusUnprocessableEntity)
		return
	}

	kbDir := filepath.Join(s.cfg.Server.DataDir, "kb", sessionID)
	chunks, err := s.ingester.Build(r.Context(), pages, kbDir)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("knowledge base build failed")
		jsonError(w, msgProcessFailed, http.StatusInternalServerError)
		return
	}

	if err := s.sessions.SetKnowledgeBase(r.Context(), sessionID, kbDir); err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("failed to activate knowledge base")
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

// extractSource resolves the request into page records. On failure it writes
// the response itself and returns ok=false.
func (s *Server) extractSource(w http.ResponseWriter, r *http.Request, sessionID, assetDir string) ([]models.PageRecord, bool) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return nil, false
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, msgFileOrURLRequired, http.StatusBadRequest)
			return nil, false
		}
		defer file.Close()

		filename := filepath.Base(header.Filename)
		if !parser.IsSupportedExtension(filename) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
			return nil, false
		}

		uploadPath := filepath.Join(s.cfg.Server.DataDir, "uploads", sessionID, filename)
		if err := saveUpload(file, uploadPath); err != nil {
			log.Error().Err(err).Str("file", filename).Msg("failed to save upload")
			jsonError(w, msgInternalError, http.StatusInternalServerError)
			return nil, false
		}

		pages, err := parser.ParseFile(uploadPath, assetDir)
		if err != nil {
			log.Error().Err(err).Str("file", filename).Msg("extraction failed")
			jsonError(w, msgProcessFailed, http.StatusUnprocessableEntity)
			return nil, false
		}
		return pages, true
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		jsonError(w, msgFileOrURLRequired, http.StatusBadRequest)
		return nil, false
	}
	pages, err := parser.ParseWebsite(body.URL, s.cfg.Fetch)
	if err != nil {
		log.Error().Err(err).Str("url", body.URL).Msg("website extraction failed")
		jsonError(w, msgProcessFailed, http.StatusUnprocessableEntity)
		return nil, false
	}
	return pages, true
}

// handleAsk answers one question against the session's active knowledge base
// and appends both turns to the history.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessions.GetSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}
	if session.KBPath == "" {
		jsonError(w, msgProcessDataFirst, http.StatusConflict)
		return
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Question) == "" {
		jsonError(w, msgQuestionRequired, http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(body.Question)

	history, err := s.sessions.History(r.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("failed to load history")
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	answer, err := s.answerer.Answer(r.Context(), question, history, session.KBPath)
	if errors.Is(err, rag.ErrIndexNotFound) {
		jsonError(w, msgProcessDataFirst, http.StatusConflict)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("answering failed")
		jsonError(w, "failed to answer the question", http.StatusInternalServerError)
		return
	}

	if err := s.sessions.AppendTurn(r.Context(), sessionID, models.RoleUser, question); err != nil {
		log.Error().Err(err).Msg("failed to store user turn")
	}
	if err := s.sessions.AppendTurn(r.Context(), sessionID, models.RoleAssistant, answer.Text); err != nil {
		log.Error().Err(err).Msg("failed to store assistant turn")
	}

	sources := answer.Sources
	if sources == nil {
		sources = []models.IndexedChunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":  answer.Text,
		"html":    s.renderMarkdown(answer.Text),
		"sources": sources,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.sessions.GetSession(r.Context(), sessionID); err != nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	history, err := s.sessions.History(r.Context(), sessionID)
	if err != nil {
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []models.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// renderMarkdown converts an assistant answer to HTML for the browser UI.
func (s *Server) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		log.Warn().Err(err).Msg("markdown rendering failed")
		return ""
	}
	return buf.String()
}

func saveUpload(src io.Reader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
