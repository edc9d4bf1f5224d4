package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogniquery/internal/config"
	"cogniquery/internal/models"
	"cogniquery/internal/rag"
	"cogniquery/internal/store"
)

type stubIngester struct {
	chunks   int
	err      error
	gotPages []models.PageRecord
	gotPath  string
}

func (s *stubIngester) Build(_ context.Context, pages []models.PageRecord, storePath string) (int, error) {
	s.gotPages = pages
	s.gotPath = storePath
	if s.err != nil {
		return 0, s.err
	}
	return s.chunks, nil
}

type stubAnswerer struct {
	answer      *models.Answer
	err         error
	gotQuestion string
	gotHistory  []models.ChatTurn
}

func (s *stubAnswerer) Answer(_ context.Context, question string, history []models.ChatTurn, _ string) (*models.Answer, error) {
	s.gotQuestion = question
	s.gotHistory = history
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func newTestServer(t *testing.T, ingester Ingester, answerer Answerer) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Server.DataDir = t.TempDir()

	sessions, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })
	require.NoError(t, sessions.Init(context.Background()))

	return NewServer(sessions, ingester, answerer, cfg)
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["id"])
	return body["id"]
}

func uploadCSV(t *testing.T, srv *Server, sessionID, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "table.csv")
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func askJSON(t *testing.T, srv *Server, sessionID, question string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"question": %q}`, question)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAskBeforeProcess(t *testing.T) {
	srv := newTestServer(t, &stubIngester{chunks: 1}, &stubAnswerer{})
	sessionID := createSession(t, srv)

	rec := askJSON(t, srv, sessionID, "What does the document say?")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "please process data first")
}

func TestProcessThenAsk(t *testing.T) {
	ingester := &stubIngester{chunks: 2}
	answerer := &stubAnswerer{answer: &models.Answer{
		Text: "Alice is **30**.",
		Sources: []models.IndexedChunk{
			{Type: models.ChunkTypeText, Content: "Row 1: 'name' is 'Alice', 'age' is '30'", Page: 1},
		},
	}}
	srv := newTestServer(t, ingester, answerer)
	sessionID := createSession(t, srv)

	rec := uploadCSV(t, srv, sessionID, "name,age\nAlice,30\nBob,25\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ingester.gotPages, 1)
	assert.Contains(t, ingester.gotPages[0].Text, "Alice")
	assert.Contains(t, ingester.gotPath, sessionID)

	rec = askJSON(t, srv, sessionID, "What is Alice's age?")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Answer  string                `json:"answer"`
		HTML    string                `json:"html"`
		Sources []models.IndexedChunk `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Alice is **30**.", body.Answer)
	assert.Contains(t, body.HTML, "<strong>30</strong>")
	require.Len(t, body.Sources, 1)
	assert.Contains(t, body.Sources[0].Content, "Alice")
	assert.Equal(t, "What is Alice's age?", answerer.gotQuestion)
	assert.Empty(t, answerer.gotHistory, "first question has no history")
}

func TestAskAppendsHistory(t *testing.T) {
	answerer := &stubAnswerer{answer: &models.Answer{Text: "It is a table of people.", Sources: nil}}
	srv := newTestServer(t, &stubIngester{chunks: 1}, answerer)
	sessionID := createSession(t, srv)

	rec := uploadCSV(t, srv, sessionID, "name\nAlice\n")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = askJSON(t, srv, sessionID, "What is this?")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = askJSON(t, srv, sessionID, "Anything else?")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, answerer.gotHistory, 2, "second question sees the first exchange")
	assert.Equal(t, models.RoleUser, answerer.gotHistory[0].Role)
	assert.Equal(t, "What is this?", answerer.gotHistory[0].Content)
	assert.Equal(t, models.RoleAssistant, answerer.gotHistory[1].Role)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID+"/history", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		History []models.ChatTurn `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.History, 4)
}

func TestProcessClearsHistory(t *testing.T) {
	answerer := &stubAnswerer{answer: &models.Answer{Text: "ok"}}
	srv := newTestServer(t, &stubIngester{chunks: 1}, answerer)
	sessionID := createSession(t, srv)

	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sessionID, "a\n1\n").Code)
	require.Equal(t, http.StatusOK, askJSON(t, srv, sessionID, "first?").Code)

	// Processing a new source replaces the knowledge base and the history.
	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sessionID, "b\n2\n").Code)

	require.Equal(t, http.StatusOK, askJSON(t, srv, sessionID, "second?").Code)
	assert.Empty(t, answerer.gotHistory)
}

func TestProcess_UnsupportedFile(t *testing.T) {
	srv := newTestServer(t, &stubIngester{chunks: 1}, &stubAnswerer{})
	sessionID := createSession(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "archive.zip")
	require.NoError(t, err)
	part.Write([]byte("zipzip"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcess_EmptyExtraction(t *testing.T) {
	srv := newTestServer(t, &stubIngester{chunks: 1}, &stubAnswerer{})
	sessionID := createSession(t, srv)

	// Header-only CSV yields no rows, so no records.
	rec := uploadCSV(t, srv, sessionID, "name,age\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to process the provided data")
}

func TestProcess_BuildFailure(t *testing.T) {
	srv := newTestServer(t, &stubIngester{err: errors.New("embedding api down")}, &stubAnswerer{})
	sessionID := createSession(t, srv)

	rec := uploadCSV(t, srv, sessionID, "name\nAlice\n")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The failed build must not activate a knowledge base.
	rec = askJSON(t, srv, sessionID, "hello?")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAsk_StaleKnowledgeBase(t *testing.T) {
	answerer := &stubAnswerer{err: fmt.Errorf("open: %w", rag.ErrIndexNotFound)}
	srv := newTestServer(t, &stubIngester{chunks: 1}, answerer)
	sessionID := createSession(t, srv)

	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sessionID, "a\n1\n").Code)

	rec := askJSON(t, srv, sessionID, "anything?")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "please process data first")
}

func TestSessionLockBoundedAndStable(t *testing.T) {
	srv := newTestServer(t, &stubIngester{}, &stubAnswerer{})

	assert.Same(t, srv.sessionLock("abc"), srv.sessionLock("abc"))

	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10*sessionLockShards; i++ {
		seen[srv.sessionLock(fmt.Sprintf("session-%d", i))] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), sessionLockShards)
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, &stubIngester{}, &stubAnswerer{})

	rec := askJSON(t, srv, "ghost", "hello?")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
