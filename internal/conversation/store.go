package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/bayy420-999/wulang-ai/internal/db"
)

var (
	// ErrNoActive indicates the user has no conversation yet.
	ErrNoActive = errors.New("no active conversation")
	// ErrEmptyMessage indicates an append with neither content nor attachment.
	ErrEmptyMessage = errors.New("message needs content or an attachment")
)

// Store reads and writes conversations and messages.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "conversation_store")),
	}
}

// FindActive returns the user's active conversation: most recent updated_at,
// tie-broken by id. Returns ErrNoActive when the user has none.
func (s *Store) FindActive(ctx context.Context, userID string) (Conversation, error) {
	pgUserID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid user id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, updated_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, id DESC
		 LIMIT 1`,
		pgUserID,
	)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNoActive
		}
		return Conversation{}, fmt.Errorf("find active conversation: %w", err)
	}
	return conv, nil
}

// Create starts a new conversation for the user.
func (s *Store) Create(ctx context.Context, userID string) (Conversation, error) {
	pgUserID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid user id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (user_id)
		 VALUES ($1)
		 RETURNING id, user_id, created_at, updated_at`,
		pgUserID,
	)
	conv, err := scanConversation(row)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Append persists one message and advances the conversation's updated_at.
func (s *Store) Append(ctx context.Context, input AppendInput) (Message, error) {
	if strings.TrimSpace(input.Content) == "" && strings.TrimSpace(input.AttachmentID) == "" {
		return Message{}, ErrEmptyMessage
	}
	pgConvID, err := dbpkg.ParseUUID(input.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid conversation id: %w", err)
	}
	pgAttachmentID, err := parseOptionalUUID(input.AttachmentID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid attachment id: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, attachment_id, role, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, conversation_id, attachment_id, role, content, created_at`,
		pgConvID, pgAttachmentID, string(input.Role), toPgText(input.Content),
	)
	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`,
		pgConvID,
	); err != nil {
		return Message{}, fmt.Errorf("touch conversation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

// ListTrailing returns the most recent limit messages of a conversation in
// chronological order, each enriched with its attachment's kind and summary.
func (s *Store) ListTrailing(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	pgConvID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.conversation_id, m.attachment_id, m.role, m.content, m.created_at,
		        a.kind, a.summary
		 FROM messages m
		 LEFT JOIN attachments a ON a.id = m.attachment_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at DESC, m.seq DESC
		 LIMIT $2`,
		pgConvID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trailing messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var (
			id           pgtype.UUID
			convID       pgtype.UUID
			attachmentID pgtype.UUID
			content      pgtype.Text
			kind         pgtype.Text
			summary      pgtype.Text
			m            Message
		)
		if err := rows.Scan(&id, &convID, &attachmentID, &m.Role, &content, &m.CreatedAt, &kind, &summary); err != nil {
			return nil, fmt.Errorf("scan trailing message: %w", err)
		}
		m.ID = id.String()
		m.ConversationID = convID.String()
		if attachmentID.Valid {
			m.AttachmentID = attachmentID.String()
		}
		m.Content = dbpkg.TextToString(content)
		m.AttachmentKind = dbpkg.TextToString(kind)
		m.AttachmentSummary = dbpkg.TextToString(summary)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trailing messages: %w", err)
	}

	// Newest-first from the DB; reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteByUser removes all of the user's conversations and, via cascade,
// their messages. Used by the reset flow.
func (s *Store) DeleteByUser(ctx context.Context, userID string) error {
	pgUserID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE user_id = $1`,
		pgUserID,
	); err != nil {
		return fmt.Errorf("delete conversations: %w", err)
	}
	return nil
}

// DeleteOlderThan removes conversations whose last activity predates cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		id     pgtype.UUID
		userID pgtype.UUID
		c      Conversation
	)
	if err := row.Scan(&id, &userID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Conversation{}, err
	}
	c.ID = id.String()
	c.UserID = userID.String()
	return c, nil
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		id           pgtype.UUID
		convID       pgtype.UUID
		attachmentID pgtype.UUID
		content      pgtype.Text
		m            Message
	)
	if err := row.Scan(&id, &convID, &attachmentID, &m.Role, &content, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	m.ID = id.String()
	m.ConversationID = convID.String()
	if attachmentID.Valid {
		m.AttachmentID = attachmentID.String()
	}
	m.Content = dbpkg.TextToString(content)
	return m, nil
}

func parseOptionalUUID(id string) (pgtype.UUID, error) {
	if strings.TrimSpace(id) == "" {
		return pgtype.UUID{}, nil
	}
	return dbpkg.ParseUUID(id)
}

func toPgText(value string) pgtype.Text {
	value = strings.TrimSpace(value)
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
