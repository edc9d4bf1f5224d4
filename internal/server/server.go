package server

import (
	"context"
	"hash/fnv"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"cogniquery/internal/config"
	"cogniquery/internal/models"
	"cogniquery/internal/store"
)

const (
	// maxUploadBytes caps a single source upload.
	maxUploadBytes = 32 << 20

	// sessionLockShards bounds the lock table regardless of session count.
	sessionLockShards = 64
)

// Ingester builds a knowledge base from extracted pages.
type Ingester interface {
	Build(ctx context.Context, pages []models.PageRecord, storePath string) (int, error)
}

// Answerer resolves a question against a knowledge base.
type Answerer interface {
	Answer(ctx context.Context, question string, history []models.ChatTurn, storePath string) (*models.Answer, error)
}

// Server is the HTTP chat front end: it accepts uploads and URLs, triggers
// extraction and indexing, keeps per-session conversation history, and
// serves answers with their supporting sources.
type Server struct {
	router   chi.Router
	sessions *store.Store
	ingester Ingester
	answerer Answerer
	cfg      *config.Config
	markdown goldmark.Markdown

	// Serializes process/ask per session; concurrent ingests racing to
	// replace the same knowledge base directory are undefined behavior.
	// Sessions hash onto a fixed set of locks so the table stays bounded
	// however many sessions the process ever sees.
	locks [sessionLockShards]sync.Mutex
}

func NewServer(sessions *store.Store, ingester Ingester, answerer Answerer, cfg *config.Config) *Server {
	s := &Server{
		sessions: sessions,
		ingester: ingester,
		answerer: answerer,
		cfg:      cfg,
		markdown: goldmark.New(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{sessionID}/process", s.handleProcess)
		r.Post("/sessions/{sessionID}/ask", s.handleAsk)
		r.Get("/sessions/{sessionID}/history", s.handleHistory)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// sessionLock returns the mutex guarding one session's pipeline operations.
// Distinct sessions may share a shard; that only over-serializes, never
// under-serializes.
func (s *Server) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%sessionLockShards]
}
