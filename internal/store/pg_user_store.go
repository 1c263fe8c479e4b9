package store

import (
	"context"
	"errors"
	"fmt"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const (
	selectUserByUsername = "SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1"
	insertUser           = `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at`
)

// PgUserStore implements UserStore on PostgreSQL.
type PgUserStore struct {
	db *pgxpool.Pool
}

var _ UserStore = (*PgUserStore)(nil)

func NewPgUserStore(dbp *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{db: dbp}
}

func (s *PgUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, selectUserByUsername, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalogerrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (s *PgUserStore) Create(ctx context.Context, user User) (*User, error) {
	created, err := scanUser(s.db.QueryRow(ctx, insertUser, user.Username, user.Email, user.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, catalogerrors.ErrUserExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &created, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}
