package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/bayy420-999/wulang-ai/internal/db"
)

// ErrNotFound indicates no user exists for the given phone address.
var ErrNotFound = errors.New("user not found")

// Store reads and writes user rows.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a user store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "user_store")),
	}
}

// FindByPhone looks up a user by phone address.
func (s *Store) FindByPhone(ctx context.Context, phone string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, phone_number, display_name, created_at
		 FROM users WHERE phone_number = $1`,
		phone,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// Create inserts a new user. An empty display name is stored as NULL.
func (s *Store) Create(ctx context.Context, phone, displayName string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (phone_number, display_name)
		 VALUES ($1, $2)
		 RETURNING id, phone_number, display_name, created_at`,
		phone, toPgText(displayName),
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UpdateName sets the display name of an existing user.
func (s *Store) UpdateName(ctx context.Context, userID, displayName string) error {
	pgID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET display_name = $2 WHERE id = $1`,
		pgID, toPgText(displayName),
	); err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		id   pgtype.UUID
		name pgtype.Text
		u    User
	)
	if err := row.Scan(&id, &u.PhoneNumber, &name, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.ID = id.String()
	u.DisplayName = dbpkg.TextToString(name)
	return u, nil
}

func toPgText(value string) pgtype.Text {
	value = strings.TrimSpace(value)
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
