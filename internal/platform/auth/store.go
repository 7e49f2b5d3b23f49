package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Account struct {
	ID           int64
	Username     string
	FullName     string
	PasswordHash string
	Role         string
	IsActive     bool
}

type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) AccountStore {
	return &Store{db: db}
}

const selectAccount = `
SELECT id, username, full_name, password_hash, role, is_active
FROM users
`

func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectAccount+`WHERE username = ? LIMIT 1`, username))
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectAccount+`WHERE id = ? LIMIT 1`, id))
}

func (s *Store) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id)
	return err
}

func (s *Store) scanOne(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.FullName, &a.PasswordHash, &a.Role, &a.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
