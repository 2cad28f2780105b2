// Package session persists conversations and their turns in PostgreSQL.
//
// Store failures never fail a chat request; callers log and continue. The
// chat stream is the source of truth for the in-flight exchange.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atelier-ai/atelier/internal/chat"
	"github.com/atelier-ai/atelier/internal/log"
)

// ErrNotFound indicates the conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Conversation is one stored chat thread.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Querier is the database surface the store needs. *pgxpool.Pool satisfies
// it; the interface is defined here, by the consumer.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages conversation persistence. Safe for concurrent use.
type Store struct {
	db     Querier
	logger log.Logger
}

// NewStore creates a store over the given querier.
func NewStore(db Querier, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Create starts a new conversation for the given model.
func (s *Store) Create(ctx context.Context, model string) (*Conversation, error) {
	c := &Conversation{ID: uuid.New(), Model: model}
	err := s.db.QueryRow(ctx,
		`INSERT INTO conversations (id, model) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		c.ID, c.Model,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.logger.Debug("created conversation", "id", c.ID, "model", model)
	return c, nil
}

// Get returns one conversation.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	c := &Conversation{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(title, ''), model, message_count, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.Title, &c.Model, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

// List returns conversations ordered by last update, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, COALESCE(title, ''), model, message_count, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c := &Conversation{}
		if err := rows.Scan(&c.ID, &c.Title, &c.Model, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// Delete removes a conversation and its turns (cascade).
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// SetTitle updates the conversation title.
func (s *Store) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE conversations SET title = $2, updated_at = now() WHERE id = $1`,
		id, title,
	)
	if err != nil {
		return fmt.Errorf("set title for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTurns appends turns to a conversation, assigning sequence numbers
// after the current maximum, and bumps the conversation metadata. Appending
// to a conversation that does not exist returns ErrNotFound.
func (s *Store) AppendTurns(ctx context.Context, id uuid.UUID, turns []chat.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	var maxSeq int
	if err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM conversation_turns WHERE conversation_id = $1`,
		id,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("sequence number for %s: %w", id, err)
	}

	for i, turn := range turns {
		blocks, err := json.Marshal(turn.Blocks)
		if err != nil {
			return fmt.Errorf("marshal turn blocks: %w", err)
		}
		if _, err := s.db.Exec(ctx,
			`INSERT INTO conversation_turns (conversation_id, role, content, blocks, sequence_number)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, turn.Role, turn.Content, blocks, maxSeq+i+1,
		); err != nil {
			// 23503: the foreign key rejected the insert, so the
			// conversation row is gone.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrNotFound
			}
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE conversations SET message_count = $2, updated_at = now() WHERE id = $1`,
		id, maxSeq+len(turns),
	); err != nil {
		return fmt.Errorf("update conversation metadata: %w", err)
	}

	s.logger.Debug("appended turns", "conversation_id", id, "count", len(turns))
	return nil
}

// Turns returns a conversation's turns in sequence order.
func (s *Store) Turns(ctx context.Context, id uuid.UUID) ([]chat.Turn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT role, content, blocks, created_at
		 FROM conversation_turns WHERE conversation_id = $1 ORDER BY sequence_number`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("turns for %s: %w", id, err)
	}
	defer rows.Close()

	var out []chat.Turn
	for rows.Next() {
		var turn chat.Turn
		var blocks []byte
		if err := rows.Scan(&turn.Role, &turn.Content, &blocks, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if len(blocks) > 0 {
			if err := json.Unmarshal(blocks, &turn.Blocks); err != nil {
				s.logger.Warn("skipping turn with malformed blocks", "conversation_id", id, "error", err)
				continue
			}
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("turns for %s: %w", id, err)
	}
	return out, nil
}
