package notify

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type TokenStore interface {
	Upsert(ctx context.Context, t *Token) error
	Deactivate(ctx context.Context, userID int64, token string) (int64, error)
	DeactivateAll(ctx context.Context, userID int64) (int64, error)
	DeactivateTokens(ctx context.Context, tokens []string) error
	ActiveTokens(ctx context.Context, userID int64) ([]Token, error)
	TouchTokens(ctx context.Context, tokens []string, at time.Time) error
	DeactivateStale(ctx context.Context, before time.Time) (int64, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Upsert registers a device token. A token already known (possibly for another user, or
// deactivated) is moved to t.UserID and reactivated.
func (s *Store) Upsert(ctx context.Context, t *Token) error {
	const q = `
		INSERT INTO notification_tokens (user_id, token, device_type, device_info, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON DUPLICATE KEY UPDATE
			user_id = VALUES(user_id),
			device_type = VALUES(device_type),
			device_info = VALUES(device_info),
			is_active = 1,
			updated_at = VALUES(updated_at)`
	_, err := s.db.ExecContext(ctx, q, t.UserID, t.Token, t.DeviceType, t.DeviceInfo, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}

	const sel = `SELECT id, is_active, created_at FROM notification_tokens WHERE token = ?`
	return s.db.QueryRowContext(ctx, sel, t.Token).Scan(&t.ID, &t.IsActive, &t.CreatedAt)
}

func (s *Store) Deactivate(ctx context.Context, userID int64, token string) (int64, error) {
	const q = `UPDATE notification_tokens SET is_active = 0, updated_at = NOW() WHERE user_id = ? AND token = ? AND is_active = 1`
	res, err := s.db.ExecContext(ctx, q, userID, token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeactivateAll(ctx context.Context, userID int64) (int64, error) {
	const q = `UPDATE notification_tokens SET is_active = 0, updated_at = NOW() WHERE user_id = ? AND is_active = 1`
	res, err := s.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeactivateTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	q := `UPDATE notification_tokens SET is_active = 0, updated_at = NOW() WHERE token IN (` + placeholders(len(tokens)) + `)`
	_, err := s.db.ExecContext(ctx, q, stringArgs(tokens)...)
	return err
}

func (s *Store) ActiveTokens(ctx context.Context, userID int64) ([]Token, error) {
	const q = `
		SELECT id, user_id, token, device_type, device_info, is_active, last_used_at, created_at, updated_at
		FROM notification_tokens
		WHERE user_id = ? AND is_active = 1
		ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceType, &t.DeviceInfo, &t.IsActive, &t.LastUsedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) TouchTokens(ctx context.Context, tokens []string, at time.Time) error {
	if len(tokens) == 0 {
		return nil
	}
	q := `UPDATE notification_tokens SET last_used_at = ? WHERE token IN (` + placeholders(len(tokens)) + `)`
	args := append([]any{at}, stringArgs(tokens)...)
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

// DeactivateStale deactivates tokens whose last use (or registration, if never used) is before the cutoff.
func (s *Store) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	const q = `
		UPDATE notification_tokens
		SET is_active = 0, updated_at = NOW()
		WHERE is_active = 1 AND COALESCE(last_used_at, created_at) < ?`
	res, err := s.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
