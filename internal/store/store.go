package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"cogniquery/internal/helper"
	"cogniquery/internal/models"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one chat session: its conversation history plus the location of
// the knowledge base that is currently active for it. KBPath is empty until
// a source has been processed successfully.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        string    `bun:"id,pk" json:"id"`
	KBPath    string    `bun:"kb_path" json:"kb_path"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Turn is one stored conversation message, append-only per session.
type Turn struct {
	bun.BaseModel `bun:"table:turns,alias:t"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	SessionID string    `bun:"session_id,notnull" json:"session_id"`
	Role      string    `bun:"role,notnull" json:"role"`
	Content   string    `bun:"content,notnull" json:"content"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Store persists sessions and their conversation turns in SQLite.
type Store struct {
	db *bun.DB
}

// Open opens (or creates) the session database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string, debug bool) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}, nil
}

// Init creates the schema if it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Session)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Turn)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create turns table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession starts a new empty session with no active knowledge base.
func (s *Store) CreateSession(ctx context.Context) (*Session, error) {
	session := &Session{
		ID:        helper.NewID(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(session).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	session := new(Session)
	err := s.db.NewSelect().Model(session).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// SetKnowledgeBase records a freshly built knowledge base as the session's
// active one and clears the conversation history, since the old turns refer
// to content that is no longer indexed.
func (s *Store) SetKnowledgeBase(ctx context.Context, sessionID, kbPath string) error {
	res, err := s.db.NewUpdate().Model((*Session)(nil)).
		Set("kb_path = ?", kbPath).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	if _, err := s.db.NewDelete().Model((*Turn)(nil)).Where("session_id = ?", sessionID).Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// AppendTurn adds one message to the session's history.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, role models.Role, content string) error {
	turn := &Turn{
		SessionID: sessionID,
		Role:      string(role),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(turn).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// History returns the session's conversation turns in order.
func (s *Store) History(ctx context.Context, sessionID string) ([]models.ChatTurn, error) {
	var turns []Turn
	err := s.db.NewSelect().Model(&turns).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	history := make([]models.ChatTurn, 0, len(turns))
	for _, turn := range turns {
		history = append(history, models.ChatTurn{Role: models.Role(turn.Role), Content: turn.Content})
	}
	return history, nil
}
