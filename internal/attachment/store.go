package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/bayy420-999/wulang-ai/internal/db"
)

// Store reads and writes attachment rows.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an attachment store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "attachment_store")),
	}
}

// Create inserts a new attachment record with its summary unset.
func (s *Store) Create(ctx context.Context, userID string, kind Kind, fileName string) (Attachment, error) {
	pgUserID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return Attachment{}, fmt.Errorf("invalid user id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO attachments (user_id, kind, file_name)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, kind, file_name, summary, created_at`,
		pgUserID, string(kind), fileName,
	)
	a, err := scanAttachment(row)
	if err != nil {
		return Attachment{}, fmt.Errorf("create attachment: %w", err)
	}
	return a, nil
}

// UpdateSummary stores the backend's analysis result on the attachment.
// Logically re-writable when an analysis is retried.
func (s *Store) UpdateSummary(ctx context.Context, attachmentID, summary string) error {
	pgID, err := dbpkg.ParseUUID(attachmentID)
	if err != nil {
		return fmt.Errorf("invalid attachment id: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE attachments SET summary = $2 WHERE id = $1`,
		pgID, summary,
	); err != nil {
		return fmt.Errorf("update attachment summary: %w", err)
	}
	return nil
}

// GetByID returns an attachment by its id.
func (s *Store) GetByID(ctx context.Context, attachmentID string) (Attachment, error) {
	pgID, err := dbpkg.ParseUUID(attachmentID)
	if err != nil {
		return Attachment{}, fmt.Errorf("invalid attachment id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, kind, file_name, summary, created_at
		 FROM attachments WHERE id = $1`,
		pgID,
	)
	a, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, ErrNotFound
		}
		return Attachment{}, fmt.Errorf("get attachment: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (Attachment, error) {
	var (
		id      pgtype.UUID
		userID  pgtype.UUID
		kind    string
		summary pgtype.Text
		a       Attachment
	)
	if err := row.Scan(&id, &userID, &kind, &a.FileName, &summary, &a.CreatedAt); err != nil {
		return Attachment{}, err
	}
	a.ID = id.String()
	a.UserID = userID.String()
	a.Kind = Kind(kind)
	a.Summary = dbpkg.TextToString(summary)
	return a, nil
}
