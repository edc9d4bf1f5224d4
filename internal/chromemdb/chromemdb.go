package chromemdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/philippgille/chromem-go"
)

const (
	compress     = false
	manifestName = "kb.json"

	// FormatVersion tags the on-disk layout so a future format change can be
	// detected instead of misread.
	FormatVersion = 1
)

// Manifest describes a persisted knowledge base. It is written only after a
// build completes, so its presence marks the index as usable.
type Manifest struct {
	Version        int       `json:"version"`
	Collection     string    `json:"collection"`
	EmbeddingModel string    `json:"embedding_model"`
	Chunks         int       `json:"chunks"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store wraps one persisted chromem-go collection, the on-disk knowledge base.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	name       string
}

// Open opens (or creates) the knowledge base directory at path.
func Open(path, collectionName string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return &Store{db: db, collection: c, path: path, name: collectionName}, nil
}

// Replace drops the collection and starts an empty one, discarding the
// manifest first so a crash mid-rebuild never leaves a stale index marked
// usable. Knowledge bases are rebuilt wholesale, never updated in place.
func (s *Store) Replace() error {
	if err := os.Remove(s.manifestPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	s.collection = c
	return nil
}

// AddDocuments persists pre-embedded documents into the collection.
func (s *Store) AddDocuments(ctx context.Context, docs []chromem.Document) error {
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns the k most similar documents to the query embedding, with k
// clamped to the collection size.
func (s *Store) Query(ctx context.Context, queryEmbedding []float32, k int) ([]chromem.Result, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count() int {
	return s.collection.Count()
}

// WriteManifest marks the knowledge base as complete and usable.
func (s *Store) WriteManifest(m Manifest) error {
	m.Version = FormatVersion
	m.Collection = s.name
	m.CreatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.manifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.path, manifestName)
}

// LoadManifest reads and validates the manifest of a knowledge base
// directory. A missing manifest means no usable index exists there.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(path, manifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported knowledge base format version %d", m.Version)
	}
	return &m, nil
}
