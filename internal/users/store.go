package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"SIKON-backend/internal/platform/db"
)

type UserStore interface {
	InsertUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]User, int64, error)
	UpdateUser(ctx context.Context, u *User) error

	InsertManpower(ctx context.Context, m *Manpower) error
	GetManpower(ctx context.Context, id int64) (*Manpower, error)
	ListManpower(ctx context.Context, activeOnly bool) ([]Manpower, error)
	UpdateManpower(ctx context.Context, m *Manpower) error

	// Link sets users.manpower_id and manpower.user_id together; a nil manpowerID unlinks.
	Link(ctx context.Context, userID int64, manpowerID *int64) error
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ===== users =====

const userCols = `id, username, email, full_name, password_hash, role, is_active, manpower_id, profile, last_login_at, created_at, updated_at`

func scanUser(sc interface{ Scan(...any) error }) (*User, error) {
	var u User
	var profile []byte
	if err := sc.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.ManpowerID, &profile, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if len(profile) > 0 {
		u.Profile = json.RawMessage(profile)
	}
	return &u, nil
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return []byte(raw)
}

func (s *Store) InsertUser(ctx context.Context, u *User) error {
	const q = `
		INSERT INTO users (username, email, full_name, password_hash, role, is_active, profile, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, u.Username, u.Email, u.FullName, u.PasswordHash, u.Role, u.IsActive,
		jsonArg(u.Profile), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return ErrConflict("username already exists")
		}
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound("user not found")
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]User, int64, error) {
	var where []string
	var args []any
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, f.Role)
	}
	if f.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	if f.Search != "" {
		where = append(where, "(username LIKE ? OR full_name LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users`+cond+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	const q = `
		UPDATE users
		SET email = ?, full_name = ?, password_hash = ?, role = ?, is_active = ?, profile = ?, updated_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, u.Email, u.FullName, u.PasswordHash, u.Role, u.IsActive,
		jsonArg(u.Profile), u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 when nothing changed, so check existence before calling it missing
		if _, err := s.GetUser(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// ===== manpower =====

const manpowerCols = `id, name, position, phone, skills, daily_rate, is_active, user_id, created_at, updated_at`

func scanManpower(sc interface{ Scan(...any) error }) (*Manpower, error) {
	var m Manpower
	var skills []byte
	if err := sc.Scan(&m.ID, &m.Name, &m.Position, &m.Phone, &skills, &m.DailyRate, &m.IsActive,
		&m.UserID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &m.Skills); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func skillsArg(skills []string) (any, error) {
	if len(skills) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) InsertManpower(ctx context.Context, m *Manpower) error {
	skills, err := skillsArg(m.Skills)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO manpower (name, position, phone, skills, daily_rate, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, m.Name, m.Position, m.Phone, skills, m.DailyRate, m.IsActive, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetManpower(ctx context.Context, id int64) (*Manpower, error) {
	m, err := scanManpower(s.db.QueryRowContext(ctx, `SELECT `+manpowerCols+` FROM manpower WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound("manpower not found")
	}
	return m, err
}

func (s *Store) ListManpower(ctx context.Context, activeOnly bool) ([]Manpower, error) {
	q := `SELECT ` + manpowerCols + ` FROM manpower`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Manpower
	for rows.Next() {
		m, err := scanManpower(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) UpdateManpower(ctx context.Context, m *Manpower) error {
	skills, err := skillsArg(m.Skills)
	if err != nil {
		return err
	}
	const q = `
		UPDATE manpower
		SET name = ?, position = ?, phone = ?, skills = ?, daily_rate = ?, is_active = ?, updated_at = ?
		WHERE id = ?`
	_, err = s.db.ExecContext(ctx, q, m.Name, m.Position, m.Phone, skills, m.DailyRate, m.IsActive, m.UpdatedAt, m.ID)
	return err
}

// ===== links =====

func (s *Store) Link(ctx context.Context, userID int64, manpowerID *int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ? FOR UPDATE`, userID).Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound("user not found")
			}
			return err
		}
		if manpowerID != nil {
			if err := tx.QueryRowContext(ctx, `SELECT 1 FROM manpower WHERE id = ? FOR UPDATE`, *manpowerID).Scan(&one); err != nil {
				if err == sql.ErrNoRows {
					return ErrNotFound("manpower not found")
				}
				return err
			}
		}

		// drop the user's previous link
		if _, err := tx.ExecContext(ctx, `UPDATE manpower SET user_id = NULL WHERE user_id = ?`, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET manpower_id = NULL WHERE id = ?`, userID); err != nil {
			return err
		}
		if manpowerID == nil {
			return nil
		}

		// the manpower record may belong to someone else
		if _, err := tx.ExecContext(ctx, `UPDATE users SET manpower_id = NULL WHERE manpower_id = ?`, *manpowerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET manpower_id = ? WHERE id = ?`, *manpowerID, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE manpower SET user_id = ? WHERE id = ?`, userID, *manpowerID)
		return err
	})
}
